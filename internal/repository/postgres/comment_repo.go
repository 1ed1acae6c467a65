package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// commentRepository implements repository.CommentRepository for
// PostgreSQL. Soft-delete and restore carry the expected is_deleted
// state in the WHERE clause; concurrent moderation races resolve to a
// single winner.
type commentRepository struct {
	db *DB
}

// NewCommentRepository creates a new PostgreSQL comment repository.
func NewCommentRepository(db *DB) repository.CommentRepository {
	return &commentRepository{db: db}
}

// Create creates a comment.
func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	query := `
		INSERT INTO comments (news_id, author_id, content, created_at, is_deleted)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		comment.NewsID,
		comment.AuthorID,
		comment.Content,
		comment.CreatedAt.UTC(),
	).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// GetByID retrieves a comment regardless of deletion state.
func (r *commentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	query := `
		SELECT c.id, c.news_id, c.author_id, u.username, u.avatar, c.content, c.created_at,
		       c.is_deleted, c.deleted_by, c.deleted_at, c.deletion_reason
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1
	`

	comment := &domain.Comment{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&comment.ID, &comment.NewsID, &comment.AuthorID,
		&comment.Author, &comment.AuthorAvatar, &comment.Content, &comment.CreatedAt,
		&comment.IsDeleted, &comment.DeletedBy, &comment.DeletedAt, &comment.DeletionReason,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return comment, nil
}

// ListVisibleByNews returns non-deleted comments for a news item.
func (r *commentRepository) ListVisibleByNews(ctx context.Context, newsID int64) ([]*domain.Comment, error) {
	query := `
		SELECT c.id, c.news_id, c.author_id, u.username, u.avatar, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.news_id = $1 AND NOT c.is_deleted
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, newsID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		comment := &domain.Comment{}
		err := rows.Scan(
			&comment.ID, &comment.NewsID, &comment.AuthorID,
			&comment.Author, &comment.AuthorAvatar, &comment.Content, &comment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

// SoftDelete marks a comment deleted, guarded on NOT is_deleted.
func (r *commentRepository) SoftDelete(ctx context.Context, id int64, deletedBy int64, deletedAt time.Time, reason string) error {
	query := `
		UPDATE comments
		SET is_deleted = TRUE, deleted_by = $1, deleted_at = $2, deletion_reason = $3
		WHERE id = $4 AND NOT is_deleted
	`

	result, err := r.db.Pool.Exec(ctx, query, deletedBy, deletedAt.UTC(), reason, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Restore clears the deletion flag and moderation metadata, guarded on
// is_deleted.
func (r *commentRepository) Restore(ctx context.Context, id int64) error {
	query := `
		UPDATE comments
		SET is_deleted = FALSE, deleted_by = NULL, deleted_at = NULL, deletion_reason = NULL
		WHERE id = $1 AND is_deleted
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListDeleted returns all soft-deleted comments for the moderation log.
func (r *commentRepository) ListDeleted(ctx context.Context) ([]*domain.DeletedComment, error) {
	query := `
		SELECT c.id, c.news_id, n.title, c.content, a.username, a.avatar, c.created_at,
		       COALESCE(m.username, ''), c.deleted_at, c.deletion_reason
		FROM comments c
		JOIN news n ON n.id = c.news_id
		JOIN users a ON a.id = c.author_id
		LEFT JOIN users m ON m.id = c.deleted_by
		WHERE c.is_deleted
		ORDER BY c.deleted_at DESC, c.id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted comments: %w", err)
	}
	defer rows.Close()

	deleted := []*domain.DeletedComment{}
	for rows.Next() {
		dc := &domain.DeletedComment{}
		err := rows.Scan(
			&dc.ID, &dc.NewsID, &dc.NewsTitle, &dc.Content,
			&dc.Author, &dc.AuthorAvatar, &dc.CreatedAt,
			&dc.DeletedByUsername, &dc.DeletedAt, &dc.DeletionReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deleted comment: %w", err)
		}
		deleted = append(deleted, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted comments: %w", err)
	}

	return deleted, nil
}

var _ repository.CommentRepository = (*commentRepository)(nil)
