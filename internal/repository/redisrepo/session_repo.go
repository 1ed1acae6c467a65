package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

const (
	sessionKeyPrefix  = "session:"
	userSessionPrefix = "user_sessions:"
)

// rotateScript moves a session value from the old token key to the new
// one with a fresh TTL. Returns 0 when the old token is gone, so
// concurrent rotations resolve to exactly one winner.
var rotateScript = redis.NewScript(`
	local value = redis.call("GET", KEYS[1])
	if not value then
		return 0
	end
	redis.call("DEL", KEYS[1])
	redis.call("SET", KEYS[2], value, "PX", ARGV[1])
	return 1
`)

// sessionRepository implements repository.SessionRepository on Redis.
// The key TTL enforces expiry natively: an expired session simply
// vanishes, which callers observe as ErrNotFound. DeleteExpired is a
// no-op for the same reason.
type sessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a Redis session repository.
func NewSessionRepository(client *redis.Client) repository.SessionRepository {
	return &sessionRepository{client: client}
}

type sessionRecord struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func userSessionsKey(userID int64) string {
	return fmt.Sprintf("%s%d", userSessionPrefix, userID)
}

// Create stores a new session with a native TTL.
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	record := sessionRecord{
		Token:     session.Token,
		UserID:    session.UserID,
		Username:  session.Username,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.Token), payload, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by token. Redis has already evicted expired
// sessions, so only live ones are ever returned.
func (r *sessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &domain.Session{
		Token:     record.Token,
		UserID:    record.UserID,
		Username:  record.Username,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// UpdateExpiry pushes the expiry forward by rewriting the record with a
// fresh TTL.
func (r *sessionRepository) UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	session, err := r.Get(ctx, token)
	if err != nil {
		return err
	}
	session.ExpiresAt = expiresAt

	record := sessionRecord{
		Token:     session.Token,
		UserID:    session.UserID,
		Username:  session.Username,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("new expiry is in the past")
	}

	// XX: only touch a still-existing key; a concurrent destroy wins.
	ok, err := r.client.SetXX(ctx, sessionKey(token), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update session expiry: %w", err)
	}
	if !ok {
		return repository.ErrNotFound
	}

	return nil
}

// Rotate atomically moves the session to a new token.
func (r *sessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) error {
	session, err := r.Get(ctx, oldToken)
	if err != nil {
		return err
	}

	record := sessionRecord{
		Token:     newToken,
		UserID:    session.UserID,
		Username:  session.Username,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("new expiry is in the past")
	}

	moved, err := rotateScript.Run(ctx, r.client,
		[]string{sessionKey(oldToken), sessionKey(newToken)},
		ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to rotate session token: %w", err)
	}
	if moved == 0 {
		return repository.ErrNotFound
	}

	// The moved value still carries the old token; overwrite with the
	// rewritten record and fix the per-user index.
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(newToken), payload, ttl)
	pipe.SRem(ctx, userSessionsKey(session.UserID), oldToken)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), newToken)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to finalize session rotation: %w", err)
	}

	return nil
}

// Delete removes a session; absent tokens are not an error.
func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	session, err := r.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userSessionsKey(session.UserID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteByUserID removes all sessions for a user via the per-user index.
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	tokens, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, sessionKey(token))
	}
	pipe.Del(ctx, userSessionsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	return nil
}

// DeleteExpired is a no-op: Redis evicts expired session keys itself.
func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Count returns the number of live sessions.
func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan sessions: %w", err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return count, nil
}

var _ repository.SessionRepository = (*sessionRepository)(nil)
