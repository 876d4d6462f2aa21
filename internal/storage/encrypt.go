package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted blob layout: magic | salt(16) | nonce(12) | ciphertext.
var encMagic = []byte("SCPENC1\x00")

const (
	saltLen    = 16
	pbkdf2Iter = 100_000
	keyLen     = 32
)

var ErrNotEncrypted = errors.New("data is not an encrypted blob")

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iter, keyLen, sha256.New)
}

// Encrypt seals data with AES-256-GCM under a key derived from password.
func Encrypt(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+saltLen+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(data []byte, password string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	data = data[len(encMagic):]
	if len(data) < saltLen {
		return nil, errors.New("encrypted blob truncated")
	}
	salt, data := data[:saltLen], data[saltLen:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("encrypted blob truncated")
	}
	nonce, ct := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}

// IsEncrypted reports whether data carries the encryption magic header.
func IsEncrypted(data []byte) bool {
	return len(data) >= len(encMagic) && bytes.Equal(data[:len(encMagic)], encMagic)
}
