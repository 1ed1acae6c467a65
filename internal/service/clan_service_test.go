package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/lock"
)

func newTestClanService(t *testing.T) (*ClanService, *mockClanRepository, *mockUserRepository) {
	t.Helper()
	clans := newMockClanRepository()
	users := newMockUserRepository()
	clans.users = users
	svc := NewClanService(clans, lock.NewNoOpLocker(), zerolog.Nop())
	return svc, clans, users
}

func TestClanService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateClanInput
		wantErr error
		wantTag string
	}{
		{
			name:    "tag normalized to upper case",
			input:   CreateClanInput{Name: "Los Pingüinos", Tag: "  lpg "},
			wantTag: "LPG",
		},
		{
			name:    "empty name",
			input:   CreateClanInput{Name: "  ", Tag: "TAG"},
			wantErr: ErrClanNameEmpty,
		},
		{
			name:    "missing tag",
			input:   CreateClanInput{Name: "Clan", Tag: "   "},
			wantErr: domain.ErrClanTagRequired,
		},
		{
			name:    "tag too long",
			input:   CreateClanInput{Name: "Clan", Tag: "WAYTOOLONG"},
			wantErr: domain.ErrClanTagTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestClanService(t)

			clan, err := svc.Create(ctx, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantTag, clan.Tag)
		})
	}

	t.Run("duplicate name or tag", func(t *testing.T) {
		svc, _, _ := newTestClanService(t)

		_, err := svc.Create(ctx, CreateClanInput{Name: "First", Tag: "ONE"})
		require.NoError(t, err)

		_, err = svc.Create(ctx, CreateClanInput{Name: "Second", Tag: "one"})
		require.ErrorIs(t, err, domain.ErrClanAlreadyExists)
	})
}

func TestClanService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("tag change cascades to members", func(t *testing.T) {
		svc, _, users := newTestClanService(t)

		clan, err := svc.Create(ctx, CreateClanInput{Name: "Tigres", Tag: "TGR"})
		require.NoError(t, err)

		member := domain.NewUser("tiger1", "tiger1@tacops.cl", "hash")
		tag := "TGR"
		member.Clan = &tag
		require.NoError(t, users.Create(ctx, member))

		newTag := "tgx"
		updated, err := svc.Update(ctx, clan.ID, UpdateClanInput{Tag: &newTag})
		require.NoError(t, err)
		require.Equal(t, "TGX", updated.Tag)

		fresh, err := users.GetByID(ctx, member.ID)
		require.NoError(t, err)
		require.NotNil(t, fresh.Clan)
		require.Equal(t, "TGX", *fresh.Clan)
	})

	t.Run("keeping own tag is not a conflict", func(t *testing.T) {
		svc, _, _ := newTestClanService(t)

		clan, err := svc.Create(ctx, CreateClanInput{Name: "Lobos", Tag: "LBS"})
		require.NoError(t, err)

		name := "Lobos del Sur"
		updated, err := svc.Update(ctx, clan.ID, UpdateClanInput{Name: &name})
		require.NoError(t, err)
		require.Equal(t, "Lobos del Sur", updated.Name)
		require.Equal(t, "LBS", updated.Tag)
	})

	t.Run("conflict with another clan", func(t *testing.T) {
		svc, _, _ := newTestClanService(t)

		_, err := svc.Create(ctx, CreateClanInput{Name: "A", Tag: "AAA"})
		require.NoError(t, err)
		other, err := svc.Create(ctx, CreateClanInput{Name: "B", Tag: "BBB"})
		require.NoError(t, err)

		taken := "AAA"
		_, err = svc.Update(ctx, other.ID, UpdateClanInput{Tag: &taken})
		require.ErrorIs(t, err, domain.ErrClanAlreadyExists)
	})

	t.Run("unknown clan", func(t *testing.T) {
		svc, _, _ := newTestClanService(t)

		name := "Ghost"
		_, err := svc.Update(ctx, 404, UpdateClanInput{Name: &name})
		require.ErrorIs(t, err, domain.ErrClanNotFound)
	})
}

func TestClanService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newTestClanService(t)

	clan, err := svc.Create(ctx, CreateClanInput{Name: "Aguilas", Tag: "AGL"})
	require.NoError(t, err)

	member := domain.NewUser("eagle1", "eagle1@tacops.cl", "hash")
	tag := "AGL"
	member.Clan = &tag
	require.NoError(t, users.Create(ctx, member))

	require.NoError(t, svc.Delete(ctx, clan.ID))

	// Members are released, not deleted.
	fresh, err := users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.Nil(t, fresh.Clan)

	require.ErrorIs(t, svc.Delete(ctx, clan.ID), domain.ErrClanNotFound)
}
