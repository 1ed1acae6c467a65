package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// clanRepository implements repository.ClanRepository for PostgreSQL.
type clanRepository struct {
	db *DB
}

// NewClanRepository creates a new PostgreSQL clan repository.
func NewClanRepository(db *DB) repository.ClanRepository {
	return &clanRepository{db: db}
}

// Create creates a clan.
func (r *clanRepository) Create(ctx context.Context, clan *domain.Clan) error {
	query := `
		INSERT INTO clans (name, tag, logo, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		clan.Name,
		clan.Tag,
		clan.Logo,
		clan.Description,
		clan.CreatedAt.UTC(),
	).Scan(&clan.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: name or tag already exists", domain.ErrClanAlreadyExists)
		}
		return fmt.Errorf("failed to create clan: %w", err)
	}

	return nil
}

// GetByID retrieves a clan with its derived member count.
func (r *clanRepository) GetByID(ctx context.Context, id int64) (*domain.Clan, error) {
	query := `
		SELECT c.id, c.name, c.tag, c.logo, c.description, c.created_at,
		       (SELECT COUNT(*) FROM users u WHERE u.clan = c.tag)
		FROM clans c WHERE c.id = $1
	`

	clan := &domain.Clan{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&clan.ID, &clan.Name, &clan.Tag, &clan.Logo,
		&clan.Description, &clan.CreatedAt, &clan.MemberCount,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clan: %w", err)
	}

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

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clans: %w", err)
	}
	defer rows.Close()

	clans := []*domain.Clan{}
	for rows.Next() {
		clan := &domain.Clan{}
		err := rows.Scan(
			&clan.ID, &clan.Name, &clan.Tag, &clan.Logo,
			&clan.Description, &clan.CreatedAt, &clan.MemberCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clan: %w", err)
		}
		clans = append(clans, clan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clans: %w", err)
	}

	return clans, nil
}

// ExistsByNameOrTag checks for a conflicting clan, excluding the given ID.
func (r *clanRepository) ExistsByNameOrTag(ctx context.Context, name, tag string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clans WHERE (name = $1 OR tag = $2) AND id != $3)`,
		name, tag, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check clan existence: %w", err)
	}
	return exists, nil
}

// ApplyPatch applies a partial update; a tag change rewrites members'
// clan field in the same transaction.
func (r *clanRepository) ApplyPatch(ctx context.Context, id int64, oldTag string, patch repository.ClanPatch) error {
	if patch.Empty() {
		return nil
	}

	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		set := make([]string, 0, 4)
		args := make([]any, 0, 5)

		add := func(column string, value any) {
			args = append(args, value)
			set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
		}

		if patch.Name != nil {
			add("name", *patch.Name)
		}
		if patch.Tag != nil {
			add("tag", *patch.Tag)
		}
		if patch.Logo != nil {
			add("logo", *patch.Logo)
		}
		if patch.Description != nil {
			add("description", *patch.Description)
		}

		args = append(args, id)
		query := fmt.Sprintf("UPDATE clans SET %s WHERE id = $%d",
			strings.Join(set, ", "), len(args))

		result, err := tx.Exec(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: name or tag already exists", domain.ErrClanAlreadyExists)
			}
			return fmt.Errorf("failed to update clan: %w", err)
		}
		if result.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		if patch.Tag != nil && *patch.Tag != oldTag {
			_, err := tx.Exec(ctx,
				`UPDATE users SET clan = $1 WHERE clan = $2`, *patch.Tag, oldTag)
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
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var tag string
		err := tx.QueryRow(ctx, `SELECT tag FROM clans WHERE id = $1`, id).Scan(&tag)
		if err != nil {
			if isNoRows(err) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("failed to get clan tag: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET clan = NULL WHERE clan = $1`, tag); err != nil {
			return fmt.Errorf("failed to clear members' clan: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM clans WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete clan: %w", err)
		}

		return nil
	})
}

var _ repository.ClanRepository = (*clanRepository)(nil)
