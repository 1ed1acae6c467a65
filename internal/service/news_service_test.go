package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/lock"
)

func newTestNewsService(t *testing.T) (*NewsService, *mockNewsRepository, *mockCommentRepository) {
	t.Helper()
	news := newMockNewsRepository()
	comments := newMockCommentRepository()
	svc := NewNewsService(news, comments, lock.NewMemoryLocker(), nil, zerolog.Nop())
	return svc, news, comments
}

func TestNewsService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateNewsInput
		wantErr error
	}{
		{
			name:  "success",
			input: CreateNewsInput{Title: "Torneo de invierno", Content: "Inscripciones abiertas", Author: "admin"},
		},
		{
			name:    "empty title",
			input:   CreateNewsInput{Title: "  ", Content: "body"},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "empty content",
			input:   CreateNewsInput{Title: "title", Content: ""},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestNewsService(t)

			item, err := svc.Create(ctx, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotZero(t, item.ID)
			require.NotNil(t, item.LikedBy)
			require.NotNil(t, item.Comments)
		})
	}
}

func TestNewsService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestNewsService(t)

	item, err := svc.Create(ctx, CreateNewsInput{Title: "old", Content: "body", Author: "admin"})
	require.NoError(t, err)

	title := "new title"
	pinned := true
	require.NoError(t, svc.Update(ctx, item.ID, UpdateNewsInput{Title: &title, IsPinned: &pinned}))

	t.Run("blank title rejected", func(t *testing.T) {
		blank := "  "
		err := svc.Update(ctx, item.ID, UpdateNewsInput{Title: &blank})
		require.ErrorIs(t, err, ErrEmptyTitle)
	})

	t.Run("unknown item", func(t *testing.T) {
		err := svc.Update(ctx, 999, UpdateNewsInput{Title: &title})
		require.ErrorIs(t, err, domain.ErrNewsNotFound)
	})
}

func TestNewsService_AddComment(t *testing.T) {
	ctx := context.Background()
	svc, _, comments := newTestNewsService(t)

	item, err := svc.Create(ctx, CreateNewsInput{Title: "t", Content: "c", Author: "admin"})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		comment, err := svc.AddComment(ctx, AddCommentInput{
			NewsID:   item.ID,
			AuthorID: 2,
			Content:  "  nice post  ",
		})
		require.NoError(t, err)
		require.Equal(t, "nice post", comment.Content)

		visible, err := comments.ListVisibleByNews(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, visible, 1)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := svc.AddComment(ctx, AddCommentInput{NewsID: item.ID, AuthorID: 2, Content: "   "})
		require.ErrorIs(t, err, domain.ErrCommentEmpty)
	})

	t.Run("unknown news", func(t *testing.T) {
		_, err := svc.AddComment(ctx, AddCommentInput{NewsID: 999, AuthorID: 2, Content: "hi"})
		require.ErrorIs(t, err, domain.ErrNewsNotFound)
	})
}

func TestNewsService_ToggleLike(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestNewsService(t)

	item, err := svc.Create(ctx, CreateNewsInput{Title: "t", Content: "c", Author: "admin"})
	require.NoError(t, err)

	out, err := svc.ToggleLike(ctx, item.ID, 7)
	require.NoError(t, err)
	require.True(t, out.Liked)
	require.Equal(t, int64(1), out.Likes)

	// Toggling again removes the like; the count is derived, never
	// drifting negative.
	out, err = svc.ToggleLike(ctx, item.ID, 7)
	require.NoError(t, err)
	require.False(t, out.Liked)
	require.Equal(t, int64(0), out.Likes)

	_, err = svc.ToggleLike(ctx, 999, 7)
	require.ErrorIs(t, err, domain.ErrNewsNotFound)
}

func TestNewsService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, news, _ := newTestNewsService(t)

	item, err := svc.Create(ctx, CreateNewsInput{Title: "t", Content: "c", Author: "admin"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, item.ID))

	_, err = news.GetByID(ctx, item.ID)
	require.Error(t, err)

	require.ErrorIs(t, svc.Delete(ctx, item.ID), domain.ErrNewsNotFound)
}

func TestNewsService_IncrementViews(t *testing.T) {
	ctx := context.Background()
	svc, news, _ := newTestNewsService(t)

	item, err := svc.Create(ctx, CreateNewsInput{Title: "t", Content: "c", Author: "admin"})
	require.NoError(t, err)

	require.NoError(t, svc.IncrementViews(ctx, item.ID))
	require.NoError(t, svc.IncrementViews(ctx, item.ID))

	got, err := news.GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Views)
}
