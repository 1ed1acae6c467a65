package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tacops-cl/community-server/internal/domain"
)

func newTestUserService(t *testing.T) (*UserService, *mockUserRepository, *mockSessionRepository) {
	t.Helper()
	users := newMockUserRepository()
	sessions := newMockSessionRepository()
	svc := NewUserService(users, sessions, zerolog.Nop())
	return svc, users, sessions
}

// seedRoot fills the ID 1 slot so later users get higher IDs.
func seedRoot(t *testing.T, users *mockUserRepository) *domain.User {
	t.Helper()
	root := domain.NewUser("root", "root@tacops.cl", "hash")
	root.Role = domain.RoleAdmin
	require.NoError(t, users.Create(context.Background(), root))
	require.Equal(t, domain.RootUserID, root.ID)
	return root
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)
		user := domain.NewUser("player", "player@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, user))

		status := "Buscando clan"
		updated, err := svc.Update(ctx, user.ID, UpdateUserInput{Status: &status})
		require.NoError(t, err)
		require.Equal(t, "Buscando clan", updated.Status)
		require.Equal(t, "player", updated.Username)
	})

	t.Run("username validation", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)
		user := domain.NewUser("player", "player@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, user))

		short := "ab"
		_, err := svc.Update(ctx, user.ID, UpdateUserInput{Username: &short})
		require.ErrorIs(t, err, ErrInvalidUsername)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)
		first := domain.NewUser("first", "first@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, first))
		second := domain.NewUser("second", "second@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, second))

		taken := "first"
		_, err := svc.Update(ctx, second.ID, UpdateUserInput{Username: &taken})
		require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})

	t.Run("clan cleared with explicit null", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)
		user := domain.NewUser("player", "player@tacops.cl", "hash")
		tag := "TAG"
		user.Clan = &tag
		require.NoError(t, users.Create(ctx, user))

		updated, err := svc.Update(ctx, user.ID, UpdateUserInput{Clan: nil, SetClan: true})
		require.NoError(t, err)
		require.Nil(t, updated.Clan)
	})

	t.Run("root cannot be demoted", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)

		role := string(domain.RolePlayer)
		_, err := svc.Update(ctx, domain.RootUserID, UpdateUserInput{Role: &role})
		require.ErrorIs(t, err, domain.ErrRootUserProtected)
	})

	t.Run("invalid role", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)
		user := domain.NewUser("player", "player@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, user))

		role := "superuser"
		_, err := svc.Update(ctx, user.ID, UpdateUserInput{Role: &role})
		require.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestUserService_SetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("suspension revokes sessions", func(t *testing.T) {
		svc, users, sessions := newTestUserService(t)
		seedRoot(t, users)
		user := domain.NewUser("player", "player@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, user))

		session := domain.NewSession("tok", user, 20*time.Minute)
		require.NoError(t, sessions.Create(ctx, session))

		require.NoError(t, svc.SetActive(ctx, user.ID, false))

		fresh, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, fresh.IsActive)

		_, err = sessions.Get(ctx, "tok")
		require.Error(t, err)
	})

	t.Run("root cannot be suspended", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)

		err := svc.SetActive(ctx, domain.RootUserID, false)
		require.ErrorIs(t, err, domain.ErrRootUserProtected)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)

		err := svc.SetActive(ctx, 404, false)
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes sessions and removes user", func(t *testing.T) {
		svc, users, sessions := newTestUserService(t)
		seedRoot(t, users)
		user := domain.NewUser("player", "player@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, user))
		require.NoError(t, sessions.Create(ctx, domain.NewSession("tok", user, 20*time.Minute)))

		require.NoError(t, svc.Delete(ctx, user.ID))

		_, err := users.GetByID(ctx, user.ID)
		require.Error(t, err)
		_, err = sessions.Get(ctx, "tok")
		require.Error(t, err)
	})

	t.Run("root cannot be deleted", func(t *testing.T) {
		svc, users, _ := newTestUserService(t)
		seedRoot(t, users)

		err := svc.Delete(ctx, domain.RootUserID)
		require.ErrorIs(t, err, domain.ErrRootUserProtected)
	})
}

func TestUserService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestUserService(t)
	seedRoot(t, users)
	user := domain.NewUser("player", "player@tacops.cl", "oldhash")
	require.NoError(t, users.Create(ctx, user))

	require.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "abc"), ErrInvalidPassword)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "newsecret"))

	fresh, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(fresh.PasswordHash), []byte("newsecret")))
}

func TestUserService_Ranking(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestUserService(t)

	for i, name := range []string{"low", "high", "mid"} {
		u := domain.NewUser(name, name+"@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, u))
		require.NoError(t, users.CreateStats(ctx, u.ID))
		users.stats[u.ID].Kills = (i + 1) * 10
		users.stats[u.ID].Wins = i + 1
	}

	entries, err := svc.Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i := 1; i < len(entries); i++ {
		require.GreaterOrEqual(t, entries[i-1].Score, entries[i].Score)
	}
}
