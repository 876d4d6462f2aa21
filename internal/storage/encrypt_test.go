package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("%PDF-1.7 fake document body")

	blob, err := Encrypt(plain, "correct horse")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(blob))
	assert.NotContains(t, string(blob), "fake document")

	got, err := Decrypt(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := Encrypt([]byte("secret"), "right")
	require.NoError(t, err)

	_, err = Decrypt(blob, "wrong")
	assert.Error(t, err)
}

func TestDecryptPlainData(t *testing.T) {
	_, err := Decrypt([]byte("%PDF-1.7 plain"), "any")
	assert.ErrorIs(t, err, ErrNotEncrypted)
}

func TestEncryptionIsSalted(t *testing.T) {
	a, err := Encrypt([]byte("same input"), "pw")
	require.NoError(t, err)
	b, err := Encrypt([]byte("same input"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseURL(t *testing.T) {
	bucket, key, err := ParseURL("s3://my-bucket/in/scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "in/scan.pdf", key)

	_, _, err = ParseURL("s3://bucket-only")
	assert.Error(t, err)

	_, _, err = ParseURL("s3://bucket/")
	assert.Error(t, err)
}
