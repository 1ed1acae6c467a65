package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/repository"
)

func TestNewsRepository_ToggleLike(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	news := createTestNews(t, db, "Parche 3.5")
	repo := NewNewsRepository(db)

	liked, likes, err := repo.ToggleLike(ctx, news.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, liked)
	require.Equal(t, int64(1), likes)

	liked, likes, err = repo.ToggleLike(ctx, news.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, liked)
	require.Equal(t, int64(2), likes)

	// Second toggle from the same user removes the like.
	liked, likes, err = repo.ToggleLike(ctx, news.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, liked)
	require.Equal(t, int64(1), likes)
}

func TestNewsRepository_ListPopulatesCollections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	admin := createTestUser(t, db, "admin")
	news := createTestNews(t, db, "Nueva temporada")
	visible := createTestComment(t, db, news.ID, alice.ID)
	hidden := createTestComment(t, db, news.ID, bob.ID)
	repo := NewNewsRepository(db)
	comments := NewCommentRepository(db)

	_, _, err := repo.ToggleLike(ctx, news.ID, alice.ID)
	require.NoError(t, err)
	_, _, err = repo.ToggleLike(ctx, news.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, comments.SoftDelete(ctx, hidden.ID, admin.ID, time.Now().UTC(), "spam"))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(2), list[0].Likes)
	require.ElementsMatch(t, []int64{alice.ID, bob.ID}, list[0].LikedBy)
	require.Len(t, list[0].Comments, 1)
	require.Equal(t, visible.ID, list[0].Comments[0].ID)
	require.Equal(t, "alice", list[0].Comments[0].Author)
}

func TestNewsRepository_ListOrdersPinnedFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewNewsRepository(db)

	older := createTestNews(t, db, "Anuncio viejo")
	olderPatch := time.Now().UTC().Add(-time.Hour)
	_, err := db.ExecContext(ctx,
		`UPDATE news SET created_at = ? WHERE id = ?`,
		olderPatch.Format(time.RFC3339), older.ID)
	require.NoError(t, err)

	newer := createTestNews(t, db, "Anuncio nuevo")
	pinned := createTestNews(t, db, "Reglas del servidor")
	isPinned := true
	require.NoError(t, repo.ApplyPatch(ctx, pinned.ID, repository.NewsPatch{IsPinned: &isPinned}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, pinned.ID, list[0].ID)
	require.Equal(t, newer.ID, list[1].ID)
	require.Equal(t, older.ID, list[2].ID)
}

func TestNewsRepository_IncrementViews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	news := createTestNews(t, db, "Entrevista")
	repo := NewNewsRepository(db)

	require.NoError(t, repo.IncrementViews(ctx, news.ID))
	require.NoError(t, repo.IncrementViews(ctx, news.ID))

	got, err := repo.GetByID(ctx, news.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Views)
}

func TestNewsRepository_ApplyPatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	news := createTestNews(t, db, "Borrador")
	repo := NewNewsRepository(db)

	title := "Publicado"
	content := "contenido final"
	require.NoError(t, repo.ApplyPatch(ctx, news.ID, repository.NewsPatch{
		Title:   &title,
		Content: &content,
	}))

	got, err := repo.GetByID(ctx, news.ID)
	require.NoError(t, err)
	require.Equal(t, "Publicado", got.Title)
	require.Equal(t, "contenido final", got.Content)

	err = repo.ApplyPatch(ctx, 9999, repository.NewsPatch{Title: &title})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNewsRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	news := createTestNews(t, db, "Efímero")
	comment := createTestComment(t, db, news.ID, alice.ID)
	repo := NewNewsRepository(db)
	comments := NewCommentRepository(db)

	_, _, err := repo.ToggleLike(ctx, news.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, news.ID))

	_, err = repo.GetByID(ctx, news.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = comments.GetByID(ctx, comment.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Delete(ctx, news.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
