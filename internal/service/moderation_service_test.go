package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
)

func seedComment(t *testing.T, comments *mockCommentRepository, newsID int64) *domain.Comment {
	t.Helper()
	comment := &domain.Comment{
		NewsID:    newsID,
		AuthorID:  2,
		Content:   "gg wp",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, comments.Create(context.Background(), comment))
	return comment
}

func TestModerationService_DeleteComment(t *testing.T) {
	ctx := context.Background()

	t.Run("custom reason", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())
		comment := seedComment(t, comments, 1)

		err := svc.DeleteComment(ctx, DeleteCommentInput{
			CommentID: comment.ID,
			AdminID:   1,
			Reason:    "spam",
		})
		require.NoError(t, err)

		got, err := comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		require.True(t, got.IsDeleted)
		require.NotNil(t, got.DeletedBy)
		require.Equal(t, int64(1), *got.DeletedBy)
		require.NotNil(t, got.DeletedAt)
		require.NotNil(t, got.DeletionReason)
		require.Equal(t, "spam", *got.DeletionReason)
	})

	t.Run("blank reason falls back to default", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())
		comment := seedComment(t, comments, 1)

		err := svc.DeleteComment(ctx, DeleteCommentInput{
			CommentID: comment.ID,
			AdminID:   1,
			Reason:    "   ",
		})
		require.NoError(t, err)

		got, err := comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		require.Equal(t, DefaultDeletionReason, *got.DeletionReason)
	})

	t.Run("unknown comment", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())

		err := svc.DeleteComment(ctx, DeleteCommentInput{CommentID: 99, AdminID: 1})
		require.ErrorIs(t, err, domain.ErrCommentNotFound)
	})

	t.Run("delete is not idempotent", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())
		comment := seedComment(t, comments, 1)

		input := DeleteCommentInput{CommentID: comment.ID, AdminID: 1}
		require.NoError(t, svc.DeleteComment(ctx, input))

		// Deleting again is a moderation error, not a no-op.
		err := svc.DeleteComment(ctx, input)
		require.ErrorIs(t, err, domain.ErrCommentNotFound)
	})
}

func TestModerationService_RestoreComment(t *testing.T) {
	ctx := context.Background()

	t.Run("clears all moderation fields", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())
		comment := seedComment(t, comments, 1)

		require.NoError(t, svc.DeleteComment(ctx, DeleteCommentInput{CommentID: comment.ID, AdminID: 1}))
		require.NoError(t, svc.RestoreComment(ctx, comment.ID, 1))

		got, err := comments.GetByID(ctx, comment.ID)
		require.NoError(t, err)
		require.False(t, got.IsDeleted)
		require.Nil(t, got.DeletedBy)
		require.Nil(t, got.DeletedAt)
		require.Nil(t, got.DeletionReason)
	})

	t.Run("restore of a live comment is not found", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())
		comment := seedComment(t, comments, 1)

		err := svc.RestoreComment(ctx, comment.ID, 1)
		require.ErrorIs(t, err, domain.ErrCommentNotFound)
	})

	t.Run("unknown comment", func(t *testing.T) {
		comments := newMockCommentRepository()
		svc := NewModerationService(comments, nil, zerolog.Nop())

		err := svc.RestoreComment(ctx, 42, 1)
		require.ErrorIs(t, err, domain.ErrCommentNotFound)
	})
}

func TestModerationService_ListDeletedComments(t *testing.T) {
	ctx := context.Background()
	comments := newMockCommentRepository()
	svc := NewModerationService(comments, nil, zerolog.Nop())

	kept := seedComment(t, comments, 1)
	removed := seedComment(t, comments, 1)
	require.NoError(t, svc.DeleteComment(ctx, DeleteCommentInput{CommentID: removed.ID, AdminID: 1}))

	deleted, err := svc.ListDeletedComments(ctx)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, removed.ID, deleted[0].ID)
	require.NotEqual(t, kept.ID, deleted[0].ID)
}
