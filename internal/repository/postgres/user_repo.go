package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

const userColumns = `id, username, email, password_hash, role, avatar, status, is_online, clan, is_active, last_login, created_at`

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Avatar,
		&user.Status,
		&user.IsOnline,
		&user.Clan,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, avatar, status, is_online, clan, is_active, last_login, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Avatar,
		user.Status,
		user.IsOnline,
		user.Clan,
		user.IsActive,
		user.LastLogin,
		user.CreatedAt.UTC(),
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
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
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
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
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
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
	rows, err := r.db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
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
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
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
	args := make([]any, 0, 7)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.Avatar != nil {
		add("avatar", *patch.Avatar)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.SetClan {
		add("clan", patch.Clan)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args))

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetActive sets the soft-suspend flag.
func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetOnline sets the online flag.
func (r *userRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET is_online = $1 WHERE id = $2`, online, id)
	if err != nil {
		return fmt.Errorf("failed to set online flag: %w", err)
	}
	return nil
}

// TouchLastLogin sets last_login to now.
func (r *userRepository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete hard-deletes a user; dependent rows cascade.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ExistsByUsernameOrEmail checks for a conflicting user.
func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// CreateStats creates the initial stats row for a user.
func (r *userRepository) CreateStats(ctx context.Context, userID int64) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO user_stats (user_id) VALUES ($1)`, userID)
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
		WHERE u.is_active
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	defer rows.Close()

	var ranked []*repository.RankedUser
	for rows.Next() {
		user := &domain.User{}
		stats := &domain.UserStats{}

		err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.Role, &user.Avatar, &user.Status, &user.IsOnline, &user.Clan,
			&user.IsActive, &user.LastLogin, &user.CreatedAt,
			&stats.Kills, &stats.Deaths, &stats.Wins, &stats.Losses, &stats.HoursPlayed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		stats.UserID = user.ID

		ranked = append(ranked, &repository.RankedUser{User: user, Stats: stats})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}

	return ranked, nil
}

var _ repository.UserRepository = (*userRepository)(nil)
