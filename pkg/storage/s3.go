package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the backend uses, satisfied by
// *s3.Client from aws-sdk-go-v2.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores each key as one S3 object. Suited for low-churn values
// shared across machines, not for chatty UI state. It does not emit native
// change events.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	store := storage.NewS3Storage(s3.NewFromConfig(cfg), "my-bucket",
//	    storage.WithS3Prefix("settings/"))
type S3Storage struct {
	client  S3API
	bucket  string
	prefix  string
	timeout time.Duration
}

// S3StorageOption configures S3Storage.
type S3StorageOption func(*s3StorageConfig)

type s3StorageConfig struct {
	prefix  string
	timeout time.Duration
}

// WithS3Prefix sets the object key prefix. Default: "vueuse-kv/".
func WithS3Prefix(prefix string) S3StorageOption {
	return func(c *s3StorageConfig) {
		c.prefix = prefix
	}
}

// WithS3Timeout bounds each S3 call. Default: 10 seconds.
func WithS3Timeout(d time.Duration) S3StorageOption {
	return func(c *s3StorageConfig) {
		c.timeout = d
	}
}

// NewS3Storage creates an S3-backed backend.
func NewS3Storage(client S3API, bucket string, opts ...S3StorageOption) *S3Storage {
	cfg := &s3StorageConfig{
		prefix:  "vueuse-kv/",
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Storage{
		client:  client,
		bucket:  bucket,
		prefix:  cfg.prefix,
		timeout: cfg.timeout,
	}
}

// GetItem returns the object body stored under key.
func (s *S3Storage) GetItem(key string) (string, bool, error) {
	ctx, cancel := s.callContext()
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", false, nil
		}
		return "", false, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// SetItem writes value as the object body under key.
func (s *S3Storage) SetItem(key, value string) error {
	ctx, cancel := s.callContext()
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        bytes.NewReader([]byte(value)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	return err
}

// RemoveItem deletes the object under key.
func (s *S3Storage) RemoveItem(key string) error {
	ctx, cancel := s.callContext()
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	return err
}

func (s *S3Storage) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
