package domain

import (
	"time"
)

// SessionTTL is the default lifetime of a session. Every extension and
// every auto-extending validity check pushes the expiry this far forward.
const SessionTTL = 20 * time.Minute

// Session is a server-side authenticated session keyed by an opaque
// token delivered to the client in an HTTP-only cookie.
//
// A session is valid iff it has not expired AND its owning user still
// exists with IsActive set. Expiry is detected lazily on next access;
// there is no requirement for a background sweep.
type Session struct {
	// Token is the opaque session identifier (UUID).
	Token string `json:"-"`

	// UserID is the ID of the authenticated user.
	UserID int64 `json:"userId"`

	// Username is denormalized for logging and display.
	Username string `json:"username"`

	// CreatedAt is when the session was issued.
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt is the current expiry. Pushed forward by Extend and by
	// auto-extending validity checks.
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSession creates a session for the given user with the given token.
func NewSession(token string, user *User, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session has passed its expiry at the
// given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Remaining returns the time left until expiry, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.Expired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}
