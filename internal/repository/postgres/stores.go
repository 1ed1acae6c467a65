package postgres

import (
	"github.com/tacops-cl/community-server/internal/repository"
)

// NewStores wires all PostgreSQL repositories over a shared pool.
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
