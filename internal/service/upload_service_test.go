package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/storage"
)

func newTestUploadService(t *testing.T, maxSize int64) *UploadService {
	t.Helper()
	backend, err := storage.NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return NewUploadService(backend, maxSize, zerolog.Nop())
}

func TestUploadService_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestUploadService(t, 1024)

	content := []byte("fake png bytes")
	hash, err := svc.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.Len(t, hash, 64)

	reader, size, err := svc.Get(ctx, hash)
	require.NoError(t, err)
	defer reader.Close()

	require.Equal(t, int64(len(content)), size)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestUploadService_DeduplicatesByContent(t *testing.T) {
	ctx := context.Background()
	svc := newTestUploadService(t, 1024)

	content := []byte("same bytes twice")
	first, err := svc.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	second, err := svc.Store(ctx, bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestUploadService_TooLarge(t *testing.T) {
	ctx := context.Background()
	svc := newTestUploadService(t, 10)

	// Declared size over the limit fails before reading anything.
	_, err := svc.Store(ctx, strings.NewReader("irrelevant"), 11)
	require.ErrorIs(t, err, domain.ErrUploadTooLarge)
}

func TestUploadService_GetUnknownHash(t *testing.T) {
	ctx := context.Background()
	svc := newTestUploadService(t, 1024)

	_, _, err := svc.Get(ctx, strings.Repeat("ab", 32))
	require.ErrorIs(t, err, domain.ErrBlobNotFound)
}
