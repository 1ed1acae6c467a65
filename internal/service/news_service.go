package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/lock"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/repository"
)

// NewsService handles news posts, comments and likes.
type NewsService struct {
	news     repository.NewsRepository
	comments repository.CommentRepository
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewNewsService creates a new NewsService. metrics may be nil.
func NewNewsService(
	news repository.NewsRepository,
	comments repository.CommentRepository,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *NewsService {
	return &NewsService{
		news:     news,
		comments: comments,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("service", "news").Logger(),
	}
}

// CreateNewsInput contains the data for a new post.
type CreateNewsInput struct {
	Title    string
	Content  string
	Image    string
	Author   string
	IsPinned bool
}

// Create publishes a news post.
func (s *NewsService) Create(ctx context.Context, input CreateNewsInput) (*domain.NewsItem, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Content = strings.TrimSpace(input.Content)
	if input.Title == "" {
		return nil, ErrEmptyTitle
	}
	if input.Content == "" {
		return nil, ErrEmptyContent
	}

	item := &domain.NewsItem{
		Title:     input.Title,
		Content:   input.Content,
		Image:     input.Image,
		Author:    input.Author,
		IsPinned:  input.IsPinned,
		CreatedAt: time.Now().UTC(),
		LikedBy:   []int64{},
		Comments:  []*domain.Comment{},
	}

	if err := s.news.Create(ctx, item); err != nil {
		s.logger.Error().Err(err).Str("title", input.Title).Msg("failed to create news item")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("news_id", item.ID).
		Str("title", item.Title).
		Msg("news item created")

	return item, nil
}

// List returns all news posts, pinned first then newest first, fully
// populated with visible comments and likes.
func (s *NewsService) List(ctx context.Context) ([]*domain.NewsItem, error) {
	items, err := s.news.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list news")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return items, nil
}

// UpdateNewsInput carries optional field updates; nil leaves a field
// unchanged. The whole patch is applied atomically or not at all.
type UpdateNewsInput struct {
	Title    *string
	Content  *string
	Image    *string
	Author   *string
	IsPinned *bool
}

// Update applies a partial update to a news post.
func (s *NewsService) Update(ctx context.Context, newsID int64, input UpdateNewsInput) error {
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return ErrEmptyTitle
		}
		input.Title = &trimmed
	}
	if input.Content != nil {
		trimmed := strings.TrimSpace(*input.Content)
		if trimmed == "" {
			return ErrEmptyContent
		}
		input.Content = &trimmed
	}

	patch := repository.NewsPatch{
		Title:    input.Title,
		Content:  input.Content,
		Image:    input.Image,
		Author:   input.Author,
		IsPinned: input.IsPinned,
	}

	if err := s.news.ApplyPatch(ctx, newsID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNewsNotFound
		}
		s.logger.Error().Err(err).Int64("news_id", newsID).Msg("failed to update news item")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return nil
}

// Delete removes a news post with its comments and likes.
func (s *NewsService) Delete(ctx context.Context, newsID int64) error {
	if err := s.news.Delete(ctx, newsID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNewsNotFound
		}
		s.logger.Error().Err(err).Int64("news_id", newsID).Msg("failed to delete news item")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("news_id", newsID).Msg("news item deleted")
	return nil
}

// IncrementViews bumps the view counter for a post.
func (s *NewsService) IncrementViews(ctx context.Context, newsID int64) error {
	if err := s.news.IncrementViews(ctx, newsID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNewsNotFound
		}
		s.logger.Error().Err(err).Int64("news_id", newsID).Msg("failed to increment views")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// AddCommentInput contains the data for a new comment. Author and
// AuthorAvatar are display fields echoed back on the created comment;
// listings always re-join them from the users table.
type AddCommentInput struct {
	NewsID       int64
	AuthorID     int64
	Author       string
	AuthorAvatar string
	Content      string
}

// AddComment attaches a comment to a news post.
func (s *NewsService) AddComment(ctx context.Context, input AddCommentInput) (*domain.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domain.ErrCommentEmpty
	}

	if _, err := s.news.GetByID(ctx, input.NewsID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNewsNotFound
		}
		s.logger.Error().Err(err).Int64("news_id", input.NewsID).Msg("failed to get news item")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	comment := &domain.Comment{
		NewsID:       input.NewsID,
		AuthorID:     input.AuthorID,
		Author:       input.Author,
		AuthorAvatar: input.AuthorAvatar,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error().Err(err).Int64("news_id", input.NewsID).Msg("failed to create comment")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("comment_id", comment.ID).
		Int64("news_id", input.NewsID).
		Int64("author_id", input.AuthorID).
		Msg("comment added")

	return comment, nil
}

// ToggleLikeOutput reports the resulting like state.
type ToggleLikeOutput struct {
	Liked bool
	Likes int64
}

// ToggleLike flips a user's like on a post. The per-(news, user) lock
// serializes rapid repeated toggles from the same user; the returned
// count is read in the same transaction as the flip, so it always
// matches the stored rows.
func (s *NewsService) ToggleLike(ctx context.Context, newsID, userID int64) (*ToggleLikeOutput, error) {
	key := lock.Keys.NewsLike(newsID, userID)

	acquired, err := s.locker.AcquireWithRetry(ctx, key, 5*time.Second, 10, 50*time.Millisecond)
	if err != nil {
		s.logger.Error().Err(err).Int64("news_id", newsID).Msg("failed to acquire like lock")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrInternalError, repository.ErrLockNotAcquired)
	}
	defer func() {
		if _, err := s.locker.Release(ctx, key); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release like lock")
		}
	}()

	liked, likes, err := s.news.ToggleLike(ctx, newsID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNewsNotFound
		}
		s.logger.Error().Err(err).Int64("news_id", newsID).Msg("failed to toggle like")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.LikeTogglesTotal.Inc()
	}

	return &ToggleLikeOutput{Liked: liked, Likes: likes}, nil
}
