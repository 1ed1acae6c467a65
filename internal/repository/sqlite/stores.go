package sqlite

import (
	"github.com/tacops-cl/community-server/internal/repository"
)

// NewStores wires all SQLite repositories over a shared DB handle.
func NewStores(db *DB) *repository.Stores {
	return &repository.Stores{
		Users:    NewUserRepository(db),
		Sessions: NewSessionRepository(db),
		News:     NewNewsRepository(db),
		Comments: NewCommentRepository(db),
		Clans:    NewClanRepository(db),
		Messages: NewMessageRepository(db),
	}
}
