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

// clanRepository implements repository.ClanRepository for SQLite.
type clanRepository struct {
	db *DB
}

// NewClanRepository creates a new SQLite clan repository.
func NewClanRepository(db *DB) repository.ClanRepository {
	return &clanRepository{db: db}
}

// Create creates a clan.
func (r *clanRepository) Create(ctx context.Context, clan *domain.Clan) error {
	query := `
		INSERT INTO clans (name, tag, logo, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		clan.Name,
		clan.Tag,
		clan.Logo,
		clan.Description,
		clan.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: name or tag already exists", domain.ErrClanAlreadyExists)
		}
		return fmt.Errorf("failed to create clan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	clan.ID = id

	return nil
}

// GetByID retrieves a clan with its derived member count.
func (r *clanRepository) GetByID(ctx context.Context, id int64) (*domain.Clan, error) {
	query := `
		SELECT c.id, c.name, c.tag, c.logo, c.description, c.created_at,
		       (SELECT COUNT(*) FROM users u WHERE u.clan = c.tag)
		FROM clans c WHERE c.id = ?
	`

	clan := &domain.Clan{}
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&clan.ID, &clan.Name, &clan.Tag, &clan.Logo,
		&clan.Description, &createdAt, &clan.MemberCount,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clan: %w", err)
	}

	clan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return clan, nil
}

// List returns all clans with derived member counts.
func (r *clanRepository) List(ctx context.Context) ([]*domain.Clan, error) {
	query := `
		SELECT c.id, c.name, c.tag, c.logo, c.description, c.created_at,
		       (SELECT COUNT(*) FROM users u WHERE u.clan = c.tag)
		FROM clans c
		ORDER BY c.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clans: %w", err)
	}
	defer rows.Close()

	clans := []*domain.Clan{}
	for rows.Next() {
		clan := &domain.Clan{}
		var createdAt string

		err := rows.Scan(
			&clan.ID, &clan.Name, &clan.Tag, &clan.Logo,
			&clan.Description, &createdAt, &clan.MemberCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clan: %w", err)
		}
		clan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		clans = append(clans, clan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clans: %w", err)
	}

	return clans, nil
}

// ExistsByNameOrTag checks for a conflicting clan, excluding the given ID.
func (r *clanRepository) ExistsByNameOrTag(ctx context.Context, name, tag string, excludeID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clans WHERE (name = ? OR tag = ?) AND id != ?`,
		name, tag, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check clan existence: %w", err)
	}
	return count > 0, nil
}

// ApplyPatch applies a partial update. A tag change also rewrites the
// clan field of every member in the same transaction, so no user ever
// references a tag that doesn't exist.
func (r *clanRepository) ApplyPatch(ctx context.Context, id int64, oldTag string, patch repository.ClanPatch) error {
	if patch.Empty() {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		set := make([]string, 0, 4)
		args := make([]interface{}, 0, 5)

		if patch.Name != nil {
			set = append(set, "name = ?")
			args = append(args, *patch.Name)
		}
		if patch.Tag != nil {
			set = append(set, "tag = ?")
			args = append(args, *patch.Tag)
		}
		if patch.Logo != nil {
			set = append(set, "logo = ?")
			args = append(args, *patch.Logo)
		}
		if patch.Description != nil {
			set = append(set, "description = ?")
			args = append(args, *patch.Description)
		}

		args = append(args, id)
		query := "UPDATE clans SET " + strings.Join(set, ", ") + " WHERE id = ?"

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: name or tag already exists", domain.ErrClanAlreadyExists)
			}
			return fmt.Errorf("failed to update clan: %w", err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return repository.ErrNotFound
		}

		if patch.Tag != nil && *patch.Tag != oldTag {
			_, err := tx.ExecContext(ctx,
				`UPDATE users SET clan = ? WHERE clan = ?`, *patch.Tag, oldTag)
			if err != nil {
				return fmt.Errorf("failed to cascade clan tag to members: %w", err)
			}
		}

		return nil
	})
}

// Delete removes a clan and clears its members' clan field in one
// transaction.
func (r *clanRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var tag string
		err := tx.QueryRowContext(ctx, `SELECT tag FROM clans WHERE id = ?`, id).Scan(&tag)
		if err != nil {
			if isNoRows(err) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("failed to get clan tag: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET clan = NULL WHERE clan = ?`, tag); err != nil {
			return fmt.Errorf("failed to clear members' clan: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM clans WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete clan: %w", err)
		}

		return nil
	})
}

var _ repository.ClanRepository = (*clanRepository)(nil)
