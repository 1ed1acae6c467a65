package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker serializes work within a single process. Locks expire
// after their TTL so a crashed holder cannot wedge a key forever.
type MemoryLocker struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	ml := &MemoryLocker{expiry: make(map[string]time.Time)}

	// Expired keys are also reclaimed on Acquire; the loop just keeps
	// the map from accumulating dead entries.
	go ml.reapLoop()

	return ml
}

func (m *MemoryLocker) reapLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for key, deadline := range m.expiry {
			if now.After(deadline) {
				delete(m.expiry, key)
			}
		}
		m.mu.Unlock()
	}
}

// Acquire takes the lock if it is free or its previous holder's TTL
// has lapsed.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if deadline, held := m.expiry[key]; held && now.Before(deadline) {
		return false, nil
	}
	m.expiry[key] = now.Add(ttl)
	return true, nil
}

// AcquireWithRetry retries Acquire up to maxRetries times, sleeping
// retryDelay between attempts.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if acquired || err != nil {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release frees the lock. Returns false if the key was not held.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.expiry[key]; !held {
		return false, nil
	}
	delete(m.expiry, key)
	return true, nil
}

// IsHeld reports whether the lock is currently held and unexpired.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deadline, held := m.expiry[key]
	if !held {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(m.expiry, key)
		return false, nil
	}
	return true, nil
}

var _ Locker = (*MemoryLocker)(nil)
