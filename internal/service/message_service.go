package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// MessageService handles private messaging between users.
type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	logger   zerolog.Logger
}

// NewMessageService creates a new MessageService.
func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	logger zerolog.Logger,
) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		logger:   logger.With().Str("service", "message").Logger(),
	}
}

// SendInput contains the data for a new message.
type SendInput struct {
	FromUserID int64
	ToUserID   int64
	Content    string
}

// Send delivers a private message. Self-sends and messages to unknown
// recipients are rejected before any row is written.
func (s *MessageService) Send(ctx context.Context, input SendInput) (*domain.Message, error) {
	if input.FromUserID == input.ToUserID {
		return nil, domain.ErrMessageToSelf
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domain.ErrMessageEmpty
	}

	recipient, err := s.users.GetByID(ctx, input.ToUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrRecipientNotFound
		}
		s.logger.Error().Err(err).Int64("to_user_id", input.ToUserID).Msg("failed to get recipient")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	// Suspended accounts are unreachable; don't reveal why.
	if !recipient.IsActive {
		return nil, domain.ErrRecipientNotFound
	}

	msg := &domain.Message{
		FromUserID: input.FromUserID,
		ToUserID:   input.ToUserID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Error().Err(err).
			Int64("from_user_id", input.FromUserID).
			Int64("to_user_id", input.ToUserID).
			Msg("failed to create message")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("message_id", msg.ID).
		Int64("from_user_id", msg.FromUserID).
		Int64("to_user_id", msg.ToUserID).
		Msg("message sent")

	return msg, nil
}

// Conversation returns all messages between the requesting user and
// another user, oldest first, and marks the other user's messages to
// the requester as read.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID int64) ([]*domain.Message, error) {
	messages, err := s.messages.Conversation(ctx, userID, otherID)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", userID).
			Int64("other_id", otherID).
			Msg("failed to get conversation")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.messages.MarkRead(ctx, userID, otherID); err != nil {
		s.logger.Warn().Err(err).
			Int64("user_id", userID).
			Int64("other_id", otherID).
			Msg("failed to mark conversation read")
	}

	return messages, nil
}

// UnreadCounts returns per-sender unread counts for the user.
func (s *MessageService) UnreadCounts(ctx context.Context, userID int64) ([]*domain.UnreadCount, error) {
	counts, err := s.messages.UnreadCounts(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get unread counts")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return counts, nil
}
