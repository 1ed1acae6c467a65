package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/domain"
)

func newTestMessageService(t *testing.T) (*MessageService, *mockMessageRepository, *mockUserRepository) {
	t.Helper()
	messages := newMockMessageRepository()
	users := newMockUserRepository()
	svc := NewMessageService(messages, users, zerolog.Nop())
	return svc, messages, users
}

func TestMessageService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, _, users := newTestMessageService(t)
		from := domain.NewUser("alice", "alice@tacops.cl", "hash")
		to := domain.NewUser("bob", "bob@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, from))
		require.NoError(t, users.Create(ctx, to))

		msg, err := svc.Send(ctx, SendInput{FromUserID: from.ID, ToUserID: to.ID, Content: "  hola  "})
		require.NoError(t, err)
		require.NotZero(t, msg.ID)
		require.Equal(t, "hola", msg.Content)
		require.False(t, msg.IsRead)
	})

	t.Run("self-send rejected before any write", func(t *testing.T) {
		svc, messages, users := newTestMessageService(t)
		user := domain.NewUser("alice", "alice@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, user))

		_, err := svc.Send(ctx, SendInput{FromUserID: user.ID, ToUserID: user.ID, Content: "hi me"})
		require.ErrorIs(t, err, domain.ErrMessageToSelf)
		require.Empty(t, messages.messages)
	})

	t.Run("empty content", func(t *testing.T) {
		svc, _, users := newTestMessageService(t)
		from := domain.NewUser("alice", "alice@tacops.cl", "hash")
		to := domain.NewUser("bob", "bob@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, from))
		require.NoError(t, users.Create(ctx, to))

		_, err := svc.Send(ctx, SendInput{FromUserID: from.ID, ToUserID: to.ID, Content: "   "})
		require.ErrorIs(t, err, domain.ErrMessageEmpty)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		svc, _, users := newTestMessageService(t)
		from := domain.NewUser("alice", "alice@tacops.cl", "hash")
		require.NoError(t, users.Create(ctx, from))

		_, err := svc.Send(ctx, SendInput{FromUserID: from.ID, ToUserID: 404, Content: "hi"})
		require.ErrorIs(t, err, domain.ErrRecipientNotFound)
	})

	t.Run("suspended recipient looks unknown", func(t *testing.T) {
		svc, _, users := newTestMessageService(t)
		from := domain.NewUser("alice", "alice@tacops.cl", "hash")
		to := domain.NewUser("bob", "bob@tacops.cl", "hash")
		to.IsActive = false
		require.NoError(t, users.Create(ctx, from))
		require.NoError(t, users.Create(ctx, to))

		_, err := svc.Send(ctx, SendInput{FromUserID: from.ID, ToUserID: to.ID, Content: "hi"})
		require.ErrorIs(t, err, domain.ErrRecipientNotFound)
	})
}

func TestMessageService_Conversation(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newTestMessageService(t)

	alice := domain.NewUser("alice", "alice@tacops.cl", "hash")
	bob := domain.NewUser("bob", "bob@tacops.cl", "hash")
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	_, err := svc.Send(ctx, SendInput{FromUserID: alice.ID, ToUserID: bob.ID, Content: "hola"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, SendInput{FromUserID: bob.ID, ToUserID: alice.ID, Content: "que tal"})
	require.NoError(t, err)

	// Bob opens the conversation: both directions come back and the
	// message he received is now read.
	msgs, err := svc.Conversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	unread, err := svc.UnreadCounts(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, unread)

	// Alice still has bob's reply unread.
	unread, err = svc.UnreadCounts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, bob.ID, unread[0].FromUserID)
	require.Equal(t, int64(1), unread[0].Count)
}
