package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
)

// newTestDB opens a migrated in-memory database. The single-connection
// pool from DefaultConfig keeps the memory database alive for the
// whole test.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(context.Background(), DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *domain.User {
	t.Helper()
	user := domain.NewUser(username, username+"@tacops.cl", "hash")
	repo := NewUserRepository(db)
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func createTestNews(t *testing.T, db *DB, title string) *domain.NewsItem {
	t.Helper()
	item := &domain.NewsItem{
		Title:     title,
		Content:   "contenido",
		Author:    "admin",
		CreatedAt: time.Now().UTC(),
	}
	repo := NewNewsRepository(db)
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func createTestComment(t *testing.T, db *DB, newsID, authorID int64) *domain.Comment {
	t.Helper()
	comment := &domain.Comment{
		NewsID:    newsID,
		AuthorID:  authorID,
		Content:   "buen post",
		CreatedAt: time.Now().UTC(),
	}
	repo := NewCommentRepository(db)
	require.NoError(t, repo.Create(context.Background(), comment))
	return comment
}
