// Package repository defines data access interfaces for the community
// server. These interfaces abstract database operations, allowing for
// different implementations (SQLite, PostgreSQL, Redis for sessions,
// in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserPatch describes a partial user update. Only non-nil fields are
// applied, but the whole patch is validated as one unit before any
// write. This replaces ad-hoc per-field update construction.
type UserPatch struct {
	Username *string
	Email    *string
	Role     *domain.Role
	Avatar   *string
	Status   *string

	// Clan sets the clan tag; SetClan distinguishes "leave unchanged"
	// (false) from "set to Clan, possibly nil" (true).
	Clan    *string
	SetClan bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.Role == nil &&
		p.Avatar == nil && p.Status == nil && !p.SetClan
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user and fills in the generated ID.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*domain.User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int64, error)

	// ApplyPatch applies a partial update to the user row.
	// Returns domain.ErrUserAlreadyExists on duplicate username/email.
	ApplyPatch(ctx context.Context, id int64, patch UserPatch) error

	// SetActive sets the soft-suspend flag.
	SetActive(ctx context.Context, id int64, active bool) error

	// SetOnline sets the online flag.
	SetOnline(ctx context.Context, id int64, online bool) error

	// TouchLastLogin sets last_login to now.
	TouchLastLogin(ctx context.Context, id int64) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// Delete hard-deletes a user. Messages, comments, likes, stats and
	// sessions cascade in the same transactional unit.
	Delete(ctx context.Context, id int64) error

	// ExistsByUsernameOrEmail checks for a conflicting user.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// CreateStats creates the initial stats row for a user.
	CreateStats(ctx context.Context, userID int64) error

	// Ranking returns users joined with their stats.
	Ranking(ctx context.Context) ([]*RankedUser, error)
}

// RankedUser pairs a user with their gameplay stats for the ranking page.
type RankedUser struct {
	User  *domain.User
	Stats *domain.UserStats
}

// =============================================================================
// Session Repository
// =============================================================================

// SessionRepository defines the interface for session storage. The
// backing store may be the relational database or Redis; either way the
// operations below must be atomic per token.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by token. Returns ErrNotFound for unknown
	// tokens; an expired session is still returned (the caller decides
	// what expiry means and calls Delete).
	Get(ctx context.Context, token string) (*domain.Session, error)

	// UpdateExpiry pushes the expiry forward. Returns ErrNotFound if the
	// token no longer exists (lost a concurrent destroy race).
	UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error

	// Rotate atomically replaces the token of an existing session and
	// sets the new expiry. Returns ErrNotFound if the old token is gone,
	// which makes concurrent rotations safe: exactly one wins.
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) error

	// Delete removes a session. Deleting an absent token is not an
	// error; destroy is idempotent.
	Delete(ctx context.Context, token string) error

	// DeleteByUserID removes all sessions belonging to a user.
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteExpired removes sessions whose expiry has passed and
	// returns how many were removed. Used by the optional sweeper; the
	// authoritative expiry model remains lazy detection on access.
	DeleteExpired(ctx context.Context) (int64, error)

	// Count returns the number of stored sessions (including not yet
	// swept expired ones).
	Count(ctx context.Context) (int64, error)
}

// =============================================================================
// News Repository
// =============================================================================

// NewsPatch describes a partial news update.
type NewsPatch struct {
	Title    *string
	Content  *string
	Image    *string
	Author   *string
	IsPinned *bool
}

// Empty reports whether the patch changes nothing.
func (p NewsPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Image == nil &&
		p.Author == nil && p.IsPinned == nil
}

// NewsRepository defines the interface for news item data access.
type NewsRepository interface {
	// Create creates a news item and fills in the generated ID.
	Create(ctx context.Context, item *domain.NewsItem) error

	// GetByID retrieves a news item without its owned collections.
	GetByID(ctx context.Context, id int64) (*domain.NewsItem, error)

	// List returns all news items ordered pinned-first then newest-first,
	// each populated with visible comments, like count and likedBy set.
	List(ctx context.Context) ([]*domain.NewsItem, error)

	// ApplyPatch applies a partial update to the news row.
	ApplyPatch(ctx context.Context, id int64, patch NewsPatch) error

	// Delete removes a news item; comments and likes cascade.
	Delete(ctx context.Context, id int64) error

	// IncrementViews atomically bumps the view counter.
	IncrementViews(ctx context.Context, id int64) error

	// ToggleLike flips the (user, news) like row atomically and returns
	// whether the item is now liked plus the consistent aggregate count.
	ToggleLike(ctx context.Context, newsID, userID int64) (liked bool, likes int64, err error)
}

// =============================================================================
// Comment Repository
// =============================================================================

// CommentRepository defines the interface for comment data access,
// including the soft-delete moderation workflow.
type CommentRepository interface {
	// Create creates a comment and fills in the generated ID.
	Create(ctx context.Context, comment *domain.Comment) error

	// GetByID retrieves a comment regardless of deletion state.
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)

	// ListVisibleByNews returns non-deleted comments for a news item,
	// oldest first, joined with author username and avatar.
	ListVisibleByNews(ctx context.Context, newsID int64) ([]*domain.Comment, error)

	// SoftDelete marks a comment deleted with the moderation metadata.
	// The transition is compare-and-set: it succeeds only if the comment
	// exists and is not already deleted at commit time; otherwise
	// ErrNotFound is returned.
	SoftDelete(ctx context.Context, id int64, deletedBy int64, deletedAt time.Time, reason string) error

	// Restore clears the deletion flag and all three metadata fields in
	// one atomic statement. Compare-and-set on is_deleted = true;
	// ErrNotFound otherwise.
	Restore(ctx context.Context, id int64) error

	// ListDeleted returns all soft-deleted comments enriched with news
	// title and deleting admin's username, most recent deletion first.
	ListDeleted(ctx context.Context) ([]*domain.DeletedComment, error)
}

// =============================================================================
// Clan Repository
// =============================================================================

// ClanPatch describes a partial clan update. Tag must already be
// normalized (upper-cased) by the caller.
type ClanPatch struct {
	Name        *string
	Tag         *string
	Logo        *string
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p ClanPatch) Empty() bool {
	return p.Name == nil && p.Tag == nil && p.Logo == nil && p.Description == nil
}

// ClanRepository defines the interface for clan data access.
type ClanRepository interface {
	// Create creates a clan and fills in the generated ID.
	Create(ctx context.Context, clan *domain.Clan) error

	// GetByID retrieves a clan by ID.
	GetByID(ctx context.Context, id int64) (*domain.Clan, error)

	// List returns all clans with derived member counts.
	List(ctx context.Context) ([]*domain.Clan, error)

	// ExistsByNameOrTag checks for a conflicting clan, excluding the
	// given ID (use 0 on create).
	ExistsByNameOrTag(ctx context.Context, name, tag string, excludeID int64) (bool, error)

	// ApplyPatch applies a partial update. When the patch changes the
	// tag, every user whose clan equals the old tag is updated to the
	// new tag in the same transaction - no intermediate state where
	// users reference a nonexistent tag is ever observable.
	ApplyPatch(ctx context.Context, id int64, oldTag string, patch ClanPatch) error

	// Delete removes a clan and clears the clan field of its members in
	// one transaction.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// Message Repository
// =============================================================================

// MessageRepository defines the interface for private message data access.
type MessageRepository interface {
	// Create creates a message and fills in the generated ID.
	Create(ctx context.Context, msg *domain.Message) error

	// Conversation returns all messages between two users, oldest first.
	Conversation(ctx context.Context, userID, otherID int64) ([]*domain.Message, error)

	// MarkRead marks all messages from senderID to recipientID as read.
	MarkRead(ctx context.Context, recipientID, senderID int64) error

	// UnreadCounts returns per-sender unread counts for a recipient.
	UnreadCounts(ctx context.Context, recipientID int64) ([]*domain.UnreadCount, error)
}

// =============================================================================
// Stores
// =============================================================================

// Stores bundles all repository instances behind a single handle that
// is passed into services; there is no process-global state.
type Stores struct {
	Users    UserRepository
	Sessions SessionRepository
	News     NewsRepository
	Comments CommentRepository
	Clans    ClanRepository
	Messages MessageRepository
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
