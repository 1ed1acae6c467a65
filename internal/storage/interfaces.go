// Package storage defines blob storage backends for user uploads
// (avatars, news images, clan logos). Content is addressed by its
// SHA-256 hash, so re-uploading identical bytes is free.
package storage

import (
	"context"
	"io"
)

// Backend defines the interface for upload storage backends.
// Implementations include the local filesystem and S3-compatible
// object stores.
type Backend interface {
	// Store stores content from a reader and returns its SHA-256 hash
	// (64 hex characters). Storing content that already exists is a
	// no-op returning the same hash.
	Store(ctx context.Context, reader io.Reader, size int64) (contentHash string, err error)

	// Retrieve retrieves content by its hash. The returned ReadCloser
	// must be closed after use. Returns domain.ErrBlobNotFound for an
	// unknown hash.
	Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error)

	// Delete removes content by its hash. Returns domain.ErrBlobNotFound
	// if the content doesn't exist.
	Delete(ctx context.Context, contentHash string) error

	// Exists checks if content with the given hash exists.
	Exists(ctx context.Context, contentHash string) (bool, error)

	// GetSize returns the size of stored content in bytes.
	GetSize(ctx context.Context, contentHash string) (int64, error)
}
