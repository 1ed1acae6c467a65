package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/service"
)

// UserHandler handles user management and the public ranking.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// UserConfig contains configuration for the user handler.
type UserConfig struct {
	UserService *service.UserService
	Logger      zerolog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(cfg UserConfig) *UserHandler {
	return &UserHandler{
		users:  cfg.UserService,
		logger: cfg.Logger.With().Str("handler", "user").Logger(),
	}
}

// optionalString distinguishes an absent JSON field from an explicit
// null: absent leaves the target unchanged, null clears it.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

func (h *UserHandler) handleGetAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"users": users})
}

func (h *UserHandler) handleRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.users.Ranking(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"ranking": ranking})
}

// handleUpdate applies a partial profile update. Users may edit their
// own profile; editing anyone else, or touching the role field at all,
// requires an administrator.
func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       int64          `json:"id"`
		Username *string        `json:"username"`
		Email    *string        `json:"email"`
		Role     *string        `json:"role"`
		Avatar   *string        `json:"avatar"`
		Status   *string        `json:"status"`
		Clan     optionalString `json:"clan"`
		Password *string        `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := UserFromContext(r.Context())
	if actor.ID != req.ID && !actor.IsAdmin() {
		respondError(w, h.logger, domain.ErrAccessDenied)
		return
	}
	if req.Role != nil && !actor.IsAdmin() {
		respondError(w, h.logger, domain.ErrAccessDenied)
		return
	}

	if req.Password != nil {
		if err := h.users.ChangePassword(r.Context(), req.ID, *req.Password); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}

	user, err := h.users.Update(r.Context(), req.ID, service.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		Avatar:   req.Avatar,
		Status:   req.Status,
		Clan:     req.Clan.Value,
		SetClan:  req.Clan.Set,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"user": user, "message": "user updated"})
}

// handleToggleStatus flips a user's active flag. Suspension revokes
// every live session of the target.
func (h *UserHandler) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByID(r.Context(), req.ID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	newStatus := !user.IsActive
	if err := h.users.SetActive(r.Context(), req.ID, newStatus); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"newStatus": newStatus,
		"message":   "user status updated",
	})
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.Delete(r.Context(), req.ID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "user deleted")
}
