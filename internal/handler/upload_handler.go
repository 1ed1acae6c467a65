package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/service"
)

// UploadHandler handles avatar and news-image uploads. Blobs are
// content-addressed, so the returned URL is stable for identical
// content.
type UploadHandler struct {
	uploads *service.UploadService
	logger  zerolog.Logger
}

// UploadConfig contains configuration for the upload handler.
type UploadConfig struct {
	UploadService *service.UploadService
	Logger        zerolog.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(cfg UploadConfig) *UploadHandler {
	return &UploadHandler{
		uploads: cfg.UploadService,
		logger:  cfg.Logger.With().Str("handler", "upload").Logger(),
	}
}

func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	hash, err := h.uploads.Store(r.Context(), file, header.Size)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respond(w, http.StatusCreated, envelope{
		"hash": hash,
		"url":  "/uploads/" + hash,
	})
}

func (h *UploadHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	reader, size, err := h.uploads.Get(r.Context(), hash)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer reader.Close()

	// Sniff the content type from the first chunk; the store keeps no
	// per-blob metadata.
	head := make([]byte, 512)
	n, _ := io.ReadFull(reader, head)
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Debug().Err(err).Str("hash", hash).Msg("download interrupted")
	}
}
