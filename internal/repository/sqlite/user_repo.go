package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// userColumns is the scan order shared by every user query.
const userColumns = `id, username, email, password_hash, role, avatar, status, is_online, clan, is_active, last_login, created_at`

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// scanUser scans a user row in userColumns order.
func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*domain.User, error) {
	user := &domain.User{}
	var isOnline, isActive int
	var clan, lastLogin sql.NullString
	var createdAt string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Avatar,
		&user.Status,
		&isOnline,
		&clan,
		&isActive,
		&lastLogin,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	user.IsOnline = isOnline != 0
	user.IsActive = isActive != 0
	if clan.Valid {
		user.Clan = &clan.String
	}
	if lastLogin.Valid {
		if t, err := time.Parse(time.RFC3339, lastLogin.String); err == nil {
			user.LastLogin = &t
		}
	}
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return user, nil
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, avatar, status, is_online, clan, is_active, last_login, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var clan interface{}
	if user.Clan != nil {
		clan = *user.Clan
	}
	var lastLogin interface{}
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.Format(time.RFC3339)
	}

	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Avatar,
		user.Status,
		boolToInt(user.IsOnline),
		clan,
		boolToInt(user.IsActive),
		lastLogin,
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// List returns all users ordered by creation time.
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Count returns the total number of users.
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ApplyPatch applies a partial update to the user row.
func (r *userRepository) ApplyPatch(ctx context.Context, id int64, patch repository.UserPatch) error {
	if patch.Empty() {
		return nil
	}

	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)

	if patch.Username != nil {
		set = append(set, "username = ?")
		args = append(args, *patch.Username)
	}
	if patch.Email != nil {
		set = append(set, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.Role != nil {
		set = append(set, "role = ?")
		args = append(args, string(*patch.Role))
	}
	if patch.Avatar != nil {
		set = append(set, "avatar = ?")
		args = append(args, *patch.Avatar)
	}
	if patch.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.SetClan {
		set = append(set, "clan = ?")
		if patch.Clan != nil {
			args = append(args, *patch.Clan)
		} else {
			args = append(args, nil)
		}
	}

	args = append(args, id)
	query := "UPDATE users SET " + strings.Join(set, ", ") + " WHERE id = ?"

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetActive sets the soft-suspend flag.
func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetOnline sets the online flag.
func (r *userRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = ? WHERE id = ?`, boolToInt(online), id)
	if err != nil {
		return fmt.Errorf("failed to set online flag: %w", err)
	}
	return nil
}

// TouchLastLogin sets last_login to now.
func (r *userRepository) TouchLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to touch last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete hard-deletes a user. Dependent rows (messages, comments, likes,
// stats, sessions) are removed by ON DELETE CASCADE in the same
// implicit transaction.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ExistsByUsernameOrEmail checks for a conflicting user.
func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`, username, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// CreateStats creates the initial stats row for a user.
func (r *userRepository) CreateStats(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_stats (user_id) VALUES (?)`, userID)
	if err != nil {
		return fmt.Errorf("failed to create user stats: %w", err)
	}
	return nil
}

// Ranking returns users joined with their stats.
func (r *userRepository) Ranking(ctx context.Context) ([]*repository.RankedUser, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.role, u.avatar, u.status,
		       u.is_online, u.clan, u.is_active, u.last_login, u.created_at,
		       COALESCE(s.kills, 0), COALESCE(s.deaths, 0), COALESCE(s.wins, 0),
		       COALESCE(s.losses, 0), COALESCE(s.hours_played, 0)
		FROM users u
		LEFT JOIN user_stats s ON s.user_id = u.id
		WHERE u.is_active = 1
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	defer rows.Close()

	var ranked []*repository.RankedUser
	for rows.Next() {
		user := &domain.User{}
		stats := &domain.UserStats{}
		var isOnline, isActive int
		var clan, lastLogin sql.NullString
		var createdAt string

		err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.Role, &user.Avatar, &user.Status, &isOnline, &clan,
			&isActive, &lastLogin, &createdAt,
			&stats.Kills, &stats.Deaths, &stats.Wins, &stats.Losses, &stats.HoursPlayed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}

		user.IsOnline = isOnline != 0
		user.IsActive = isActive != 0
		if clan.Valid {
			user.Clan = &clan.String
		}
		if lastLogin.Valid {
			if t, err := time.Parse(time.RFC3339, lastLogin.String); err == nil {
				user.LastLogin = &t
			}
		}
		user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		stats.UserID = user.ID

		ranked = append(ranked, &repository.RankedUser{User: user, Stats: stats})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}

	return ranked, nil
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ repository.UserRepository = (*userRepository)(nil)
