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

// newsRepository implements repository.NewsRepository for SQLite.
type newsRepository struct {
	db *DB
}

// NewNewsRepository creates a new SQLite news repository.
func NewNewsRepository(db *DB) repository.NewsRepository {
	return &newsRepository{db: db}
}

// Create creates a news item.
func (r *newsRepository) Create(ctx context.Context, item *domain.NewsItem) error {
	query := `
		INSERT INTO news (title, content, image, author, is_pinned, views, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.Title,
		item.Content,
		item.Image,
		item.Author,
		boolToInt(item.IsPinned),
		item.Views,
		item.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create news item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	item.ID = id

	return nil
}

// GetByID retrieves a news item without comments or likes.
func (r *newsRepository) GetByID(ctx context.Context, id int64) (*domain.NewsItem, error) {
	query := `
		SELECT id, title, content, image, author, is_pinned, views, created_at
		FROM news WHERE id = ?
	`

	item := &domain.NewsItem{}
	var isPinned int
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Title,
		&item.Content,
		&item.Image,
		&item.Author,
		&isPinned,
		&item.Views,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get news item: %w", err)
	}

	item.IsPinned = isPinned != 0
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

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

	rows, err := r.db.QueryContext(ctx, query)
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
		var isPinned int
		var createdAt string

		err := rows.Scan(
			&item.ID, &item.Title, &item.Content, &item.Image,
			&item.Author, &isPinned, &item.Views, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}

		item.IsPinned = isPinned != 0
		item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		items = append(items, item)
		byID[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news: %w", err)
	}

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

// attachLikes fills Likes and LikedBy for every item in the map.
func (r *newsRepository) attachLikes(ctx context.Context, byID map[int64]*domain.NewsItem) error {
	rows, err := r.db.QueryContext(ctx, `SELECT news_id, user_id FROM news_likes`)
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

// attachComments fills the visible comments for every item in the map.
func (r *newsRepository) attachComments(ctx context.Context, byID map[int64]*domain.NewsItem) error {
	query := `
		SELECT c.id, c.news_id, c.author_id, u.username, u.avatar, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.is_deleted = 0
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		comment := &domain.Comment{}
		var createdAt string

		err := rows.Scan(
			&comment.ID, &comment.NewsID, &comment.AuthorID,
			&comment.Author, &comment.AuthorAvatar, &comment.Content, &createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan comment row: %w", err)
		}
		comment.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

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
	args := make([]interface{}, 0, 6)

	if patch.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		set = append(set, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Image != nil {
		set = append(set, "image = ?")
		args = append(args, *patch.Image)
	}
	if patch.Author != nil {
		set = append(set, "author = ?")
		args = append(args, *patch.Author)
	}
	if patch.IsPinned != nil {
		set = append(set, "is_pinned = ?")
		args = append(args, boolToInt(*patch.IsPinned))
	}

	args = append(args, id)
	query := "UPDATE news SET " + strings.Join(set, ", ") + " WHERE id = ?"

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update news item: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a news item; comments and likes cascade.
func (r *newsRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete news item: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// IncrementViews bumps the view counter in a single statement.
func (r *newsRepository) IncrementViews(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE news SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ToggleLike flips the (user, news) like row inside a transaction and
// returns the resulting state plus the aggregate count from the same
// transaction, so the count always matches the rows.
func (r *newsRepository) ToggleLike(ctx context.Context, newsID, userID int64) (bool, int64, error) {
	var liked bool
	var likes int64

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM news WHERE id = ?`, newsID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check news existence: %w", err)
		}
		if exists == 0 {
			return repository.ErrNotFound
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM news_likes WHERE news_id = ? AND user_id = ?`, newsID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove like: %w", err)
		}

		removed, _ := result.RowsAffected()
		if removed == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO news_likes (news_id, user_id) VALUES (?, ?)`, newsID, userID)
			if err != nil {
				return fmt.Errorf("failed to add like: %w", err)
			}
			liked = true
		}

		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM news_likes WHERE news_id = ?`, newsID).Scan(&likes)
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
