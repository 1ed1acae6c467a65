package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/pkg/crypto"
)

// S3Backend stores uploads in an S3-compatible object store under
// content-addressed keys. Works with AWS S3 as well as MinIO-style
// endpoints.
type S3Backend struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Backend creates an S3 storage backend from configuration.
func NewS3Backend(ctx context.Context, cfg config.S3StorageConfig, logger zerolog.Logger) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			// Custom endpoints (MinIO) need path-style addressing.
			o.UsePathStyle = true
		}
	})

	backend := &S3Backend{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "storage_s3").Logger(),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Msg("connected to S3 storage")

	return backend, nil
}

func (b *S3Backend) objectKey(contentHash string) string {
	return "uploads/" + contentHash
}

// Store stores content and returns its SHA-256 hash. Uploads are
// bounded by the configured max size, so buffering in memory is fine.
func (b *S3Backend) Store(ctx context.Context, reader io.Reader, size int64) (string, error) {
	hashReader := crypto.NewHashReader(reader)
	data, err := io.ReadAll(hashReader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if size > 0 && int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	contentHash := hashReader.SHA256()
	key := b.objectKey(contentHash)

	// Identical content is already stored under the same key.
	exists, err := b.Exists(ctx, contentHash)
	if err != nil {
		return "", err
	}
	if exists {
		return contentHash, nil
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	b.logger.Debug().
		Str("content_hash", contentHash).
		Int("size", len(data)).
		Msg("stored upload")

	return contentHash, nil
}

// Retrieve retrieves content by its hash.
func (b *S3Backend) Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error) {
	key := b.objectKey(contentHash)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, nil
}

// Delete removes content by its hash.
func (b *S3Backend) Delete(ctx context.Context, contentHash string) error {
	exists, err := b.Exists(ctx, contentHash)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrBlobNotFound
	}

	key := b.objectKey(contentHash)
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// Exists checks if content with the given hash exists.
func (b *S3Backend) Exists(ctx context.Context, contentHash string) (bool, error) {
	key := b.objectKey(contentHash)
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}

	return true, nil
}

// GetSize returns the size of stored content in bytes.
func (b *S3Backend) GetSize(ctx context.Context, contentHash string) (int64, error) {
	key := b.objectKey(contentHash)
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return 0, domain.ErrBlobNotFound
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

// Ensure S3Backend implements Backend.
var _ Backend = (*S3Backend)(nil)
