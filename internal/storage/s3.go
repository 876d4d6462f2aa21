// Package storage moves input and output PDFs between the local filesystem
// and S3, with optional password-based encryption of archived outputs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Client wraps the AWS S3 client with transfer-manager up/downloads.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
}

// NewS3Client creates a client against the given bucket using the default
// AWS credential chain.
func NewS3Client(ctx context.Context, bucket string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		downloader: manager.NewDownloader(cli),
		bucket:     bucket,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *S3Client) Bucket() string { return s.bucket }

// Ping performs a HeadBucket to verify credentials and reachability.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// ParseURL splits an s3://bucket/key reference.
func ParseURL(s3url string) (bucket, key string, err error) {
	p := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	return p[:slash], p[slash+1:], nil
}

// DownloadToTemp fetches s3://bucket/key into a temp file and returns its
// path. The caller removes the file.
func (s *S3Client) DownloadToTemp(ctx context.Context, s3url string) (string, error) {
	bucket, key, err := ParseURL(s3url)
	if err != nil {
		return "", err
	}

	// pdfcpu and mupdf want a real file with a .pdf suffix.
	f, err := os.CreateTemp("", "s3in-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("s3 download %s: %w", s3url, err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("downloaded input from s3")
	return f.Name(), nil
}

// UploadFile stores a local file under prefix/name in the configured bucket
// and returns the s3:// URL. When password is non-empty the object is
// encrypted with AES-GCM before upload (see encrypt.go).
func (s *S3Client) UploadFile(ctx context.Context, localPath, prefix, name, password string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}

	contentType := "application/pdf"
	if password != "" {
		data, err = Encrypt(data, password)
		if err != nil {
			return "", fmt.Errorf("encrypt output: %w", err)
		}
		contentType = "application/octet-stream"
	}

	key := path.Join(prefix, name)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}

	log.Info().Str("bucket", s.bucket).Str("key", key).Bool("encrypted", password != "").Msg("uploaded output to s3")
	return "s3://" + s.bucket + "/" + key, nil
}

// Fetch reads an object and decrypts it when password is non-empty.
func (s *S3Client) Fetch(ctx context.Context, key, password string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	if password != "" {
		return Decrypt(data, password)
	}
	return data, nil
}
