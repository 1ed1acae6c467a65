package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// messageRepository implements repository.MessageRepository for SQLite.
type messageRepository struct {
	db *DB
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(db *DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

// Create creates a message.
func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (from_user_id, to_user_id, content, is_read, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		msg.FromUserID,
		msg.ToUserID,
		msg.Content,
		boolToInt(msg.IsRead),
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	msg.ID = id

	return nil
}

// Conversation returns all messages between two users, oldest first.
func (r *messageRepository) Conversation(ctx context.Context, userID, otherID int64) ([]*domain.Message, error) {
	query := `
		SELECT id, from_user_id, to_user_id, content, is_read, created_at
		FROM messages
		WHERE (from_user_id = ? AND to_user_id = ?)
		   OR (from_user_id = ? AND to_user_id = ?)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, otherID, otherID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		msg := &domain.Message{}
		var isRead int
		var createdAt string

		err := rows.Scan(
			&msg.ID, &msg.FromUserID, &msg.ToUserID,
			&msg.Content, &isRead, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.IsRead = isRead != 0
		msg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// MarkRead marks all messages from senderID to recipientID as read.
func (r *messageRepository) MarkRead(ctx context.Context, recipientID, senderID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE to_user_id = ? AND from_user_id = ? AND is_read = 0`,
		recipientID, senderID)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// UnreadCounts returns per-sender unread counts for a recipient.
func (r *messageRepository) UnreadCounts(ctx context.Context, recipientID int64) ([]*domain.UnreadCount, error) {
	query := `
		SELECT from_user_id, COUNT(*)
		FROM messages
		WHERE to_user_id = ? AND is_read = 0
		GROUP BY from_user_id
	`

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread counts: %w", err)
	}
	defer rows.Close()

	counts := []*domain.UnreadCount{}
	for rows.Next() {
		uc := &domain.UnreadCount{}
		if err := rows.Scan(&uc.FromUserID, &uc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts = append(counts, uc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread counts: %w", err)
	}

	return counts, nil
}

var _ repository.MessageRepository = (*messageRepository)(nil)
