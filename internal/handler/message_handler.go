package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/service"
)

// MessageHandler handles private messaging.
type MessageHandler struct {
	messages *service.MessageService
	logger   zerolog.Logger
}

// MessageConfig contains configuration for the message handler.
type MessageConfig struct {
	MessageService *service.MessageService
	Logger         zerolog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(cfg MessageConfig) *MessageHandler {
	return &MessageHandler{
		messages: cfg.MessageService,
		logger:   cfg.Logger.With().Str("handler", "message").Logger(),
	}
}

func (h *MessageHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToUserID int64  `json:"toUserId"`
		Content  string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	user, _ := UserFromContext(r.Context())
	msg, err := h.messages.Send(r.Context(), service.SendInput{
		FromUserID: user.ID,
		ToUserID:   req.ToUserID,
		Content:    req.Content,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, envelope{"id": msg.ID, "message": "message sent"})
}

// handleGetConversation returns the two-way history with another user
// and marks the received half as read.
func (h *MessageHandler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	otherID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || otherID <= 0 {
		writeFailure(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	user, _ := UserFromContext(r.Context())
	msgs, err := h.messages.Conversation(r.Context(), user.ID, otherID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"messages": msgs})
}

func (h *MessageHandler) handleUnread(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	counts, err := h.messages.UnreadCounts(r.Context(), user.ID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, envelope{"unread": counts})
}
