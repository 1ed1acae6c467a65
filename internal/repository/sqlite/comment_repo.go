package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// commentRepository implements repository.CommentRepository for SQLite.
// Soft-delete and restore are guarded UPDATEs: the WHERE clause carries
// the expected is_deleted state, so a row that changed state between
// read and write simply doesn't match and the caller gets ErrNotFound.
type commentRepository struct {
	db *DB
}

// NewCommentRepository creates a new SQLite comment repository.
func NewCommentRepository(db *DB) repository.CommentRepository {
	return &commentRepository{db: db}
}

// Create creates a comment.
func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	query := `
		INSERT INTO comments (news_id, author_id, content, created_at, is_deleted)
		VALUES (?, ?, ?, ?, 0)
	`

	result, err := r.db.ExecContext(ctx, query,
		comment.NewsID,
		comment.AuthorID,
		comment.Content,
		comment.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	comment.ID = id

	return nil
}

// GetByID retrieves a comment regardless of deletion state.
func (r *commentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	query := `
		SELECT c.id, c.news_id, c.author_id, u.username, u.avatar, c.content, c.created_at,
		       c.is_deleted, c.deleted_by, c.deleted_at, c.deletion_reason
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = ?
	`

	comment := &domain.Comment{}
	var createdAt string
	var isDeleted int
	var deletedBy sql.NullInt64
	var deletedAt, reason sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID, &comment.NewsID, &comment.AuthorID,
		&comment.Author, &comment.AuthorAvatar, &comment.Content, &createdAt,
		&isDeleted, &deletedBy, &deletedAt, &reason,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	comment.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	comment.IsDeleted = isDeleted != 0
	if deletedBy.Valid {
		comment.DeletedBy = &deletedBy.Int64
	}
	if deletedAt.Valid {
		if t, err := time.Parse(time.RFC3339, deletedAt.String); err == nil {
			comment.DeletedAt = &t
		}
	}
	if reason.Valid {
		comment.DeletionReason = &reason.String
	}

	return comment, nil
}

// ListVisibleByNews returns non-deleted comments for a news item.
func (r *commentRepository) ListVisibleByNews(ctx context.Context, newsID int64) ([]*domain.Comment, error) {
	query := `
		SELECT c.id, c.news_id, c.author_id, u.username, u.avatar, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.news_id = ? AND c.is_deleted = 0
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		comment := &domain.Comment{}
		var createdAt string

		err := rows.Scan(
			&comment.ID, &comment.NewsID, &comment.AuthorID,
			&comment.Author, &comment.AuthorAvatar, &comment.Content, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comment.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

// SoftDelete marks a comment deleted. The is_deleted = 0 guard makes
// the transition compare-and-set: concurrent deletes race and exactly
// one succeeds.
func (r *commentRepository) SoftDelete(ctx context.Context, id int64, deletedBy int64, deletedAt time.Time, reason string) error {
	query := `
		UPDATE comments
		SET is_deleted = 1, deleted_by = ?, deleted_at = ?, deletion_reason = ?
		WHERE id = ? AND is_deleted = 0
	`

	result, err := r.db.ExecContext(ctx, query,
		deletedBy, deletedAt.UTC().Format(time.RFC3339), reason, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete comment: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Restore clears the deletion flag and all moderation metadata in one
// statement, guarded on is_deleted = 1.
func (r *commentRepository) Restore(ctx context.Context, id int64) error {
	query := `
		UPDATE comments
		SET is_deleted = 0, deleted_by = NULL, deleted_at = NULL, deletion_reason = NULL
		WHERE id = ? AND is_deleted = 1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore comment: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListDeleted returns all soft-deleted comments for the moderation log,
// most recent deletion first.
func (r *commentRepository) ListDeleted(ctx context.Context) ([]*domain.DeletedComment, error) {
	query := `
		SELECT c.id, c.news_id, n.title, c.content, a.username, a.avatar, c.created_at,
		       COALESCE(m.username, ''), c.deleted_at, c.deletion_reason
		FROM comments c
		JOIN news n ON n.id = c.news_id
		JOIN users a ON a.id = c.author_id
		LEFT JOIN users m ON m.id = c.deleted_by
		WHERE c.is_deleted = 1
		ORDER BY c.deleted_at DESC, c.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted comments: %w", err)
	}
	defer rows.Close()

	deleted := []*domain.DeletedComment{}
	for rows.Next() {
		dc := &domain.DeletedComment{}
		var createdAt string
		var deletedAt, reason sql.NullString

		err := rows.Scan(
			&dc.ID, &dc.NewsID, &dc.NewsTitle, &dc.Content,
			&dc.Author, &dc.AuthorAvatar, &createdAt,
			&dc.DeletedByUsername, &deletedAt, &reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deleted comment: %w", err)
		}

		dc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if deletedAt.Valid {
			if t, err := time.Parse(time.RFC3339, deletedAt.String); err == nil {
				dc.DeletedAt = &t
			}
		}
		if reason.Valid {
			dc.DeletionReason = &reason.String
		}

		deleted = append(deleted, dc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted comments: %w", err)
	}

	return deleted, nil
}

var _ repository.CommentRepository = (*commentRepository)(nil)
