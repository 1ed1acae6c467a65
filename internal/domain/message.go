package domain

import (
	"time"
)

// Message is a private message between two users. Self-sends are
// rejected before any row is written; IsRead is mutated only by the
// recipient.
type Message struct {
	// ID is the unique identifier for the message (auto-generated).
	ID int64 `json:"id"`

	// FromUserID is the sender.
	FromUserID int64 `json:"fromUserId"`

	// ToUserID is the recipient. Always different from FromUserID.
	ToUserID int64 `json:"toUserId"`

	// Content is the message body, non-empty after trimming.
	Content string `json:"content"`

	// IsRead is set when the recipient opens the conversation.
	IsRead bool `json:"isRead"`

	// CreatedAt is when the message was sent.
	CreatedAt time.Time `json:"timestamp"`
}

// UnreadCount is the number of unread messages from one sender.
type UnreadCount struct {
	FromUserID int64 `json:"fromUserId"`
	Count      int64 `json:"count"`
}
