package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// sessionRepository implements repository.SessionRepository on the
// relational database. Expired rows linger until DeleteExpired or a
// lazy Delete on access removes them; Get returns them regardless.
type sessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create stores a new session.
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, username, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.UserID,
		session.Username,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
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
		FROM sessions WHERE token = ?
	`

	session := &domain.Session{}
	var createdAt, expiresAt string

	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.Username,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	session.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)

	return session, nil
}

// UpdateExpiry pushes the expiry forward.
func (r *sessionRepository) UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE token = ?`,
		expiresAt.UTC().Format(time.RFC3339), token)
	if err != nil {
		return fmt.Errorf("failed to update session expiry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Rotate replaces the token in place. The conditional UPDATE makes the
// swap atomic: if the old token was already rotated or destroyed, zero
// rows match and the caller sees ErrNotFound.
func (r *sessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET token = ?, expires_at = ? WHERE token = ?`,
		newToken, expiresAt.UTC().Format(time.RFC3339), oldToken)
	if err != nil {
		return fmt.Errorf("failed to rotate session token: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a session; absent tokens are not an error.
func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID removes all sessions for a user.
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and reports the count.
func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

// Count returns the number of stored sessions.
func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

var _ repository.SessionRepository = (*sessionRepository)(nil)
