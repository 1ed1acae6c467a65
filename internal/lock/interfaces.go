// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"fmt"
	"time"
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// NewsLike returns a lock key serializing like toggles for one user on
// one news item. Two rapid toggles from the same user queue up instead
// of interleaving.
func (lockKeys) NewsLike(newsID, userID int64) string {
	return fmt.Sprintf("lock:news:like:%d:%d", newsID, userID)
}

// ClanUpdate returns a lock key for clan tag cascades.
func (lockKeys) ClanUpdate(clanID int64) string {
	return fmt.Sprintf("lock:clan:update:%d", clanID)
}

// SessionSweep returns a lock key for the expired-session sweeper, so a
// multi-instance deployment runs only one sweep at a time.
func (lockKeys) SessionSweep() string {
	return "lock:session:sweep"
}
