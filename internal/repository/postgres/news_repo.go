package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// newsRepository implements repository.NewsRepository for PostgreSQL.
type newsRepository struct {
	db *DB
}

// NewNewsRepository creates a new PostgreSQL news repository.
func NewNewsRepository(db *DB) repository.NewsRepository {
	return &newsRepository{db: db}
}

// Create creates a news item.
func (r *newsRepository) Create(ctx context.Context, item *domain.NewsItem) error {
	query := `
		INSERT INTO news (title, content, image, author, is_pinned, views, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		item.Title,
		item.Content,
		item.Image,
		item.Author,
		item.IsPinned,
		item.Views,
		item.CreatedAt.UTC(),
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create news item: %w", err)
	}

	return nil
}

// GetByID retrieves a news item without comments or likes.
func (r *newsRepository) GetByID(ctx context.Context, id int64) (*domain.NewsItem, error) {
	query := `
		SELECT id, title, content, image, author, is_pinned, views, created_at
		FROM news WHERE id = $1
	`

	item := &domain.NewsItem{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Title, &item.Content, &item.Image,
		&item.Author, &item.IsPinned, &item.Views, &item.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get news item: %w", err)
	}

	return item, nil
}

// List returns all news items, pinned first then newest first, each
// populated with visible comments, like count and likedBy set.
func (r *newsRepository) List(ctx context.Context) ([]*domain.NewsItem, error) {
	query := `
		SELECT id, title, content, image, author, is_pinned, views, created_at
		FROM news
		ORDER BY is_pinned DESC, created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}
	defer rows.Close()

	var items []*domain.NewsItem
	byID := make(map[int64]*domain.NewsItem)

	for rows.Next() {
		item := &domain.NewsItem{
			LikedBy:  []int64{},
			Comments: []*domain.Comment{},
		}
		err := rows.Scan(
			&item.ID, &item.Title, &item.Content, &item.Image,
			&item.Author, &item.IsPinned, &item.Views, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		items = append(items, item)
		byID[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news: %w", err)
	}
	rows.Close()

	if len(items) == 0 {
		return []*domain.NewsItem{}, nil
	}

	if err := r.attachLikes(ctx, byID); err != nil {
		return nil, err
	}
	if err := r.attachComments(ctx, byID); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *newsRepository) attachLikes(ctx context.Context, byID map[int64]*domain.NewsItem) error {
	rows, err := r.db.Pool.Query(ctx, `SELECT news_id, user_id FROM news_likes`)
	if err != nil {
		return fmt.Errorf("failed to query likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var newsID, userID int64
		if err := rows.Scan(&newsID, &userID); err != nil {
			return fmt.Errorf("failed to scan like row: %w", err)
		}
		if item, ok := byID[newsID]; ok {
			item.LikedBy = append(item.LikedBy, userID)
			item.Likes++
		}
	}
	return rows.Err()
}

func (r *newsRepository) attachComments(ctx context.Context, byID map[int64]*domain.NewsItem) error {
	query := `
		SELECT c.id, c.news_id, c.author_id, u.username, u.avatar, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE NOT c.is_deleted
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		comment := &domain.Comment{}
		err := rows.Scan(
			&comment.ID, &comment.NewsID, &comment.AuthorID,
			&comment.Author, &comment.AuthorAvatar, &comment.Content, &comment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan comment row: %w", err)
		}
		if item, ok := byID[comment.NewsID]; ok {
			item.Comments = append(item.Comments, comment)
		}
	}
	return rows.Err()
}

// ApplyPatch applies a partial update to the news row.
func (r *newsRepository) ApplyPatch(ctx context.Context, id int64, patch repository.NewsPatch) error {
	if patch.Empty() {
		return nil
	}

	set := make([]string, 0, 5)
	args := make([]any, 0, 6)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}
	if patch.IsPinned != nil {
		add("is_pinned", *patch.IsPinned)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE news SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args))

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update news item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a news item; comments and likes cascade.
func (r *newsRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete news item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter in a single statement.
func (r *newsRepository) IncrementViews(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE news SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ToggleLike flips the (user, news) like row inside a transaction and
// returns the resulting state plus the aggregate count from the same
// transaction.
func (r *newsRepository) ToggleLike(ctx context.Context, newsID, userID int64) (bool, int64, error) {
	var liked bool
	var likes int64

	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM news WHERE id = $1)`, newsID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check news existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}

		result, err := tx.Exec(ctx,
			`DELETE FROM news_likes WHERE news_id = $1 AND user_id = $2`, newsID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove like: %w", err)
		}

		if result.RowsAffected() == 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO news_likes (news_id, user_id) VALUES ($1, $2)`, newsID, userID)
			if err != nil {
				return fmt.Errorf("failed to add like: %w", err)
			}
			liked = true
		}

		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM news_likes WHERE news_id = $1`, newsID).Scan(&likes)
		if err != nil {
			return fmt.Errorf("failed to count likes: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, 0, err
	}

	return liked, likes, nil
}

var _ repository.NewsRepository = (*newsRepository)(nil)
