package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/service"
)

// NewsHandler handles news posts, comments, likes, and comment moderation.
type NewsHandler struct {
	news       *service.NewsService
	moderation *service.ModerationService
	logger     zerolog.Logger
}

// NewsConfig contains configuration for the news handler.
type NewsConfig struct {
	NewsService       *service.NewsService
	ModerationService *service.ModerationService
	Logger            zerolog.Logger
}

// NewNewsHandler creates a new news handler.
func NewNewsHandler(cfg NewsConfig) *NewsHandler {
	return &NewsHandler{
		news:       cfg.NewsService,
		moderation: cfg.ModerationService,
		logger:     cfg.Logger.With().Str("handler", "news").Logger(),
	}
}

func (h *NewsHandler) handleGetAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.news.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"news": items})
}

func (h *NewsHandler) handleView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.news.IncrementViews(r.Context(), req.ID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "view recorded")
}

func (h *NewsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Image    string `json:"image"`
		Author   string `json:"author"`
		IsPinned bool   `json:"isPinned"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	// The byline defaults to the posting admin.
	if req.Author == "" {
		if user, ok := UserFromContext(r.Context()); ok {
			req.Author = user.Username
		}
	}

	item, err := h.news.Create(r.Context(), service.CreateNewsInput{
		Title:    req.Title,
		Content:  req.Content,
		Image:    req.Image,
		Author:   req.Author,
		IsPinned: req.IsPinned,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, envelope{"news": item})
}

func (h *NewsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       int64   `json:"id"`
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		Image    *string `json:"image"`
		Author   *string `json:"author"`
		IsPinned *bool   `json:"isPinned"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.news.Update(r.Context(), req.ID, service.UpdateNewsInput{
		Title:    req.Title,
		Content:  req.Content,
		Image:    req.Image,
		Author:   req.Author,
		IsPinned: req.IsPinned,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "news updated")
}

func (h *NewsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.news.Delete(r.Context(), req.ID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "news deleted")
}

func (h *NewsHandler) handleComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewsID  int64  `json:"newsId"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	user, _ := UserFromContext(r.Context())
	comment, err := h.news.AddComment(r.Context(), service.AddCommentInput{
		NewsID:       req.NewsID,
		AuthorID:     user.ID,
		Author:       user.Username,
		AuthorAvatar: user.Avatar,
		Content:      req.Content,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, envelope{"comment": comment})
}

func (h *NewsHandler) handleLike(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewsID int64 `json:"newsId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	user, _ := UserFromContext(r.Context())
	out, err := h.news.ToggleLike(r.Context(), req.NewsID, user.ID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	action := "unliked"
	if out.Liked {
		action = "liked"
	}
	respond(w, http.StatusOK, envelope{
		"action": action,
		"likes":  out.Likes,
	})
}

func (h *NewsHandler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommentID int64  `json:"commentId"`
		Reason    string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	admin, _ := UserFromContext(r.Context())
	err := h.moderation.DeleteComment(r.Context(), service.DeleteCommentInput{
		CommentID: req.CommentID,
		AdminID:   admin.ID,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "comment deleted")
}

func (h *NewsHandler) handleRestoreComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommentID int64 `json:"commentId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	admin, _ := UserFromContext(r.Context())
	if err := h.moderation.RestoreComment(r.Context(), req.CommentID, admin.ID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "comment restored")
}

func (h *NewsHandler) handleGetDeletedComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.moderation.ListDeletedComments(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"comments": comments})
}
