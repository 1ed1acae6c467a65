package domain

import (
	"time"
)

// NewsItem is a news post shown on the front page. Comments and likes
// are owned collections; like counts are always derived from the like
// rows, never cached separately.
type NewsItem struct {
	// ID is the unique identifier for the news item (auto-generated).
	ID int64 `json:"id"`

	// Title is the headline.
	Title string `json:"title"`

	// Content is the body text.
	Content string `json:"content"`

	// Image is an optional image URI.
	Image string `json:"image"`

	// Author is the free-text display name of the poster.
	Author string `json:"author"`

	// IsPinned items sort before everything else.
	IsPinned bool `json:"isPinned"`

	// Views is a monotonic view counter.
	Views int64 `json:"views"`

	// CreatedAt is when the item was posted.
	CreatedAt time.Time `json:"date"`

	// Likes is the derived like count.
	Likes int64 `json:"likes"`

	// LikedBy lists the IDs of users who liked this item.
	LikedBy []int64 `json:"likedBy"`

	// Comments holds the visible (non-deleted) comments.
	Comments []*Comment `json:"comments"`
}

// Comment is a user comment attached to a news item. Comments are never
// hard-deleted by moderation; admins soft-delete them, which hides them
// from the normal stream while preserving an audit trail.
type Comment struct {
	// ID is the unique identifier for the comment (auto-generated).
	ID int64 `json:"id"`

	// NewsID is the owning news item.
	NewsID int64 `json:"newsId"`

	// AuthorID is the user who wrote the comment.
	AuthorID int64 `json:"-"`

	// Author is the author's username (joined for display).
	Author string `json:"author"`

	// AuthorAvatar is the author's avatar URI (joined for display).
	AuthorAvatar string `json:"avatar"`

	// Content is the comment text.
	Content string `json:"content"`

	// CreatedAt is when the comment was posted.
	CreatedAt time.Time `json:"date"`

	// IsDeleted marks the comment as soft-deleted. The three fields
	// below are set as a group iff IsDeleted is true and cleared as a
	// group on restore.
	IsDeleted bool `json:"-"`

	// DeletedBy is the ID of the admin who deleted the comment.
	DeletedBy *int64 `json:"-"`

	// DeletedAt is when the comment was deleted.
	DeletedAt *time.Time `json:"-"`

	// DeletionReason is the moderation reason.
	DeletionReason *string `json:"-"`
}

// DeletedComment is the admin-facing view of a soft-deleted comment,
// enriched with the owning news title and the deleting admin's username.
type DeletedComment struct {
	ID                int64      `json:"id"`
	NewsID            int64      `json:"newsId"`
	NewsTitle         string     `json:"newsTitle"`
	Content           string     `json:"content"`
	Author            string     `json:"author"`
	AuthorAvatar      string     `json:"authorAvatar"`
	CreatedAt         time.Time  `json:"createdAt"`
	DeletedByUsername string     `json:"deletedBy"`
	DeletedAt         *time.Time `json:"deletedAt"`
	DeletionReason    *string    `json:"deletionReason"`
}
