package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// sessionRepository implements repository.SessionRepository for
// PostgreSQL.
type sessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create stores a new session.
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, username, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.Token,
		session.UserID,
		session.Username,
		session.CreatedAt.UTC(),
		session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by token, expired or not.
func (r *sessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	query := `
		SELECT token, user_id, username, created_at, expires_at
		FROM sessions WHERE token = $1
	`

	session := &domain.Session{}
	err := r.db.Pool.QueryRow(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.Username,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// UpdateExpiry pushes the expiry forward.
func (r *sessionRepository) UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET expires_at = $1 WHERE token = $2`, expiresAt.UTC(), token)
	if err != nil {
		return fmt.Errorf("failed to update session expiry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Rotate replaces the token in place; a concurrent rotation or destroy
// of the old token makes this a no-op reported as ErrNotFound.
func (r *sessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET token = $1, expires_at = $2 WHERE token = $3`,
		newToken, expiresAt.UTC(), oldToken)
	if err != nil {
		return fmt.Errorf("failed to rotate session token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a session; absent tokens are not an error.
func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID removes all sessions for a user.
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and reports the count.
func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

// Count returns the number of stored sessions.
func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

var _ repository.SessionRepository = (*sessionRepository)(nil)
