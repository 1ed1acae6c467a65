package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/pkg/crypto"
)

// FilesystemBackend stores uploads on the local filesystem under a
// sharded, content-addressed layout. Writes go to a temp file first and
// are renamed into place, so a crash never leaves a partial blob at its
// final path.
type FilesystemBackend struct {
	basePath string
	logger   zerolog.Logger
}

// NewFilesystemBackend creates a filesystem storage backend rooted at
// basePath, creating it if needed.
func NewFilesystemBackend(basePath string, logger zerolog.Logger) (*FilesystemBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmpDir := filepath.Join(basePath, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &FilesystemBackend{
		basePath: basePath,
		logger:   logger.With().Str("component", "storage_filesystem").Logger(),
	}, nil
}

// Store stores content and returns its SHA-256 hash.
func (b *FilesystemBackend) Store(ctx context.Context, reader io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpPath := filepath.Join(b.basePath, ".tmp", uuid.NewString())
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	hashReader := crypto.NewHashReader(reader)
	written, err := io.Copy(tmpFile, hashReader)
	closeErr := tmpFile.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if size > 0 && written != size {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	contentHash := hashReader.SHA256()
	finalPath := ComputePath(b.basePath, contentHash)

	// Identical content is already in place.
	if _, err := os.Stat(finalPath); err == nil {
		_ = os.Remove(tmpPath)
		return contentHash, nil
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move upload into place: %w", err)
	}

	b.logger.Debug().
		Str("content_hash", contentHash).
		Int64("size", written).
		Msg("stored upload")

	return contentHash, nil
}

// Retrieve retrieves content by its hash.
func (b *FilesystemBackend) Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(ComputePath(b.basePath, contentHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}

	return file, nil
}

// Delete removes content by its hash.
func (b *FilesystemBackend) Delete(ctx context.Context, contentHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(ComputePath(b.basePath, contentHash)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	return nil
}

// Exists checks if content with the given hash exists.
func (b *FilesystemBackend) Exists(ctx context.Context, contentHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(ComputePath(b.basePath, contentHash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat upload: %w", err)
	}

	return true, nil
}

// GetSize returns the size of stored content in bytes.
func (b *FilesystemBackend) GetSize(ctx context.Context, contentHash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(ComputePath(b.basePath, contentHash))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, domain.ErrBlobNotFound
		}
		return 0, fmt.Errorf("failed to stat upload: %w", err)
	}

	return info.Size(), nil
}

// Ensure FilesystemBackend implements Backend.
var _ Backend = (*FilesystemBackend)(nil)
