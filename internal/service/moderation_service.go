package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/repository"
)

// DefaultDeletionReason is recorded when an admin deletes a comment
// without giving a reason.
const DefaultDeletionReason = "Moderación administrativa"

// ModerationService handles the comment soft-delete workflow: delete,
// restore, and the admin-facing deletion log.
//
// Delete and restore are state transitions, not idempotent flag writes:
// deleting an already-deleted comment fails, as does restoring a live
// one. The state check happens at commit time in the repository, so two
// admins racing on the same comment resolve to one winner.
type ModerationService struct {
	comments repository.CommentRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewModerationService creates a new ModerationService. metrics may be nil.
func NewModerationService(
	comments repository.CommentRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ModerationService {
	return &ModerationService{
		comments: comments,
		metrics:  m,
		logger:   logger.With().Str("service", "moderation").Logger(),
	}
}

// DeleteCommentInput identifies the comment and the deleting admin.
type DeleteCommentInput struct {
	CommentID int64
	AdminID   int64

	// Reason is the moderation reason; blank falls back to
	// DefaultDeletionReason.
	Reason string
}

// DeleteComment soft-deletes a comment, hiding it from the normal
// stream while preserving it for the audit log. Fails with
// domain.ErrCommentNotFound if the comment doesn't exist or is already
// deleted.
func (s *ModerationService) DeleteComment(ctx context.Context, input DeleteCommentInput) error {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = DefaultDeletionReason
	}

	err := s.comments.SoftDelete(ctx, input.CommentID, input.AdminID, time.Now().UTC(), reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrCommentNotFound
		}
		s.logger.Error().Err(err).Int64("comment_id", input.CommentID).Msg("failed to delete comment")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.ModerationActionsTotal.WithLabelValues("delete").Inc()
	}

	s.logger.Info().
		Int64("comment_id", input.CommentID).
		Int64("admin_id", input.AdminID).
		Str("reason", reason).
		Msg("comment deleted")

	return nil
}

// RestoreComment brings a soft-deleted comment back, clearing all
// moderation metadata. Fails with domain.ErrCommentNotFound if the
// comment doesn't exist or is not deleted.
func (s *ModerationService) RestoreComment(ctx context.Context, commentID, adminID int64) error {
	err := s.comments.Restore(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrCommentNotFound
		}
		s.logger.Error().Err(err).Int64("comment_id", commentID).Msg("failed to restore comment")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.ModerationActionsTotal.WithLabelValues("restore").Inc()
	}

	s.logger.Info().
		Int64("comment_id", commentID).
		Int64("admin_id", adminID).
		Msg("comment restored")

	return nil
}

// ListDeletedComments returns the moderation log: every soft-deleted
// comment with its news title and the deleting admin's username.
func (s *ModerationService) ListDeletedComments(ctx context.Context) ([]*domain.DeletedComment, error) {
	deleted, err := s.comments.ListDeleted(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list deleted comments")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return deleted, nil
}
