package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/storage"
)

// UploadService handles user-uploaded images (avatars, news images,
// clan logos). Content is addressed by hash; the caller stores the
// returned hash as the image URI.
type UploadService struct {
	backend storage.Backend
	maxSize int64
	logger  zerolog.Logger
}

// NewUploadService creates a new UploadService.
func NewUploadService(backend storage.Backend, maxSize int64, logger zerolog.Logger) *UploadService {
	return &UploadService{
		backend: backend,
		maxSize: maxSize,
		logger:  logger.With().Str("service", "upload").Logger(),
	}
}

// Store stores an upload and returns its content hash. The reader is
// capped at the configured maximum size; anything larger fails with
// domain.ErrUploadTooLarge.
func (s *UploadService) Store(ctx context.Context, reader io.Reader, declaredSize int64) (string, error) {
	if s.maxSize > 0 && declaredSize > s.maxSize {
		return "", domain.ErrUploadTooLarge
	}

	limited := reader
	if s.maxSize > 0 {
		// One extra byte so an oversized stream is detectable.
		limited = io.LimitReader(reader, s.maxSize+1)
	}

	hash, err := s.backend.Store(ctx, limited, declaredSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to store upload")
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.maxSize > 0 {
		size, err := s.backend.GetSize(ctx, hash)
		if err == nil && size > s.maxSize {
			_ = s.backend.Delete(ctx, hash)
			return "", domain.ErrUploadTooLarge
		}
	}

	s.logger.Info().Str("content_hash", hash).Msg("upload stored")
	return hash, nil
}

// Get retrieves an upload by its content hash. The caller must close
// the returned reader.
func (s *UploadService) Get(ctx context.Context, contentHash string) (io.ReadCloser, int64, error) {
	size, err := s.backend.GetSize(ctx, contentHash)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return nil, 0, err
		}
		s.logger.Error().Err(err).Str("content_hash", contentHash).Msg("failed to stat upload")
		return nil, 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	reader, err := s.backend.Retrieve(ctx, contentHash)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return nil, 0, err
		}
		s.logger.Error().Err(err).Str("content_hash", contentHash).Msg("failed to retrieve upload")
		return nil, 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return reader, size, nil
}
