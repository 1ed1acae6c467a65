package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/service"
)

// ClanHandler handles clan management.
type ClanHandler struct {
	clans  *service.ClanService
	logger zerolog.Logger
}

// ClanConfig contains configuration for the clan handler.
type ClanConfig struct {
	ClanService *service.ClanService
	Logger      zerolog.Logger
}

// NewClanHandler creates a new clan handler.
func NewClanHandler(cfg ClanConfig) *ClanHandler {
	return &ClanHandler{
		clans:  cfg.ClanService,
		logger: cfg.Logger.With().Str("handler", "clan").Logger(),
	}
}

func (h *ClanHandler) handleGetAll(w http.ResponseWriter, r *http.Request) {
	clans, err := h.clans.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"clans": clans})
}

func (h *ClanHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Tag         string `json:"tag"`
		Logo        string `json:"logo"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	clan, err := h.clans.Create(r.Context(), service.CreateClanInput{
		Name:        req.Name,
		Tag:         req.Tag,
		Logo:        req.Logo,
		Description: req.Description,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, envelope{"id": clan.ID, "clan": clan})
}

func (h *ClanHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          int64   `json:"id"`
		Name        *string `json:"name"`
		Tag         *string `json:"tag"`
		Logo        *string `json:"logo"`
		Description *string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	clan, err := h.clans.Update(r.Context(), req.ID, service.UpdateClanInput{
		Name:        req.Name,
		Tag:         req.Tag,
		Logo:        req.Logo,
		Description: req.Description,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"clan": clan, "message": "clan updated"})
}

func (h *ClanHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.clans.Delete(r.Context(), req.ID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "clan deleted")
}
