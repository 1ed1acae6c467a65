package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/lock"
)

func TestSessionSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()
	sessions := newMockSessionRepository()

	live := &domain.Session{Token: "live", UserID: 1, ExpiresAt: time.Now().UTC().Add(10 * time.Minute)}
	dead := &domain.Session{Token: "dead", UserID: 1, ExpiresAt: time.Now().UTC().Add(-10 * time.Minute)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, dead))

	sw := NewSessionSweeper(sessions, lock.NewMemoryLocker(), nil, zerolog.Nop(), time.Minute)
	sw.RunOnce(ctx)

	_, err := sessions.Get(ctx, "live")
	require.NoError(t, err)
	_, err = sessions.Get(ctx, "dead")
	require.Error(t, err)
}

func TestSessionSweeper_StartStop(t *testing.T) {
	sessions := newMockSessionRepository()
	sw := NewSessionSweeper(sessions, lock.NewMemoryLocker(), nil, zerolog.Nop(), time.Hour)

	sw.Start()
	sw.Stop()

	// Stop on a never-started sweeper is safe too.
	disabled := NewSessionSweeper(sessions, lock.NewMemoryLocker(), nil, zerolog.Nop(), 0)
	disabled.Start()
	disabled.Stop()
}
