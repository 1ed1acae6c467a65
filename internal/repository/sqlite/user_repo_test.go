package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	user := createTestUser(t, db, "alice")
	require.NotZero(t, user.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
	require.Equal(t, domain.RolePlayer, byID.Role)
	require.True(t, byID.IsActive)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@tacops.cl")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	createTestUser(t, db, "alice")
	dup := domain.NewUser("alice", "other@tacops.cl", "hash")
	err := repo.Create(ctx, dup)
	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUserRepository_ApplyPatchClan(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	repo := NewUserRepository(db)

	tag := "LPG"
	require.NoError(t, repo.ApplyPatch(ctx, user.ID, repository.UserPatch{Clan: &tag, SetClan: true}))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Clan)
	require.Equal(t, "LPG", *got.Clan)

	// SetClan with a nil value clears the membership.
	require.NoError(t, repo.ApplyPatch(ctx, user.ID, repository.UserPatch{SetClan: true}))

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, got.Clan)
}

func TestUserRepository_ApplyPatchDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	repo := NewUserRepository(db)

	taken := "alice"
	err := repo.ApplyPatch(ctx, bob.ID, repository.UserPatch{Username: &taken})
	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	news := createTestNews(t, db, "Noticia")
	createTestComment(t, db, news.ID, alice.ID)
	sendTestMessage(t, db, alice.ID, bob.ID, "hola")
	repo := NewUserRepository(db)
	require.NoError(t, repo.CreateStats(ctx, alice.ID))

	require.NoError(t, repo.Delete(ctx, alice.ID))

	_, err := repo.GetByID(ctx, alice.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	comments, err := NewCommentRepository(db).ListVisibleByNews(ctx, news.ID)
	require.NoError(t, err)
	require.Empty(t, comments)

	conv, err := NewMessageRepository(db).Conversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Empty(t, conv)
}

func TestUserRepository_Ranking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	suspended := createTestUser(t, db, "suspended")
	repo := NewUserRepository(db)

	require.NoError(t, repo.CreateStats(ctx, alice.ID))
	require.NoError(t, repo.CreateStats(ctx, bob.ID))
	require.NoError(t, repo.CreateStats(ctx, suspended.ID))
	require.NoError(t, repo.SetActive(ctx, suspended.ID, false))

	_, err := db.ExecContext(ctx,
		`UPDATE user_stats SET kills = 10, wins = 3 WHERE user_id = ?`, bob.ID)
	require.NoError(t, err)

	ranking, err := repo.Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, ranking, 2)

	for _, entry := range ranking {
		require.NotEqual(t, suspended.ID, entry.User.ID)
		require.NotNil(t, entry.Stats)
	}

	byID := map[int64]*domain.UserStats{}
	for _, entry := range ranking {
		byID[entry.User.ID] = entry.Stats
	}
	require.Equal(t, 10, byID[bob.ID].Kills)
	require.Equal(t, 50, byID[bob.ID].Score())
	require.Equal(t, 0, byID[alice.ID].Score())
}
