// Package domain contains the core business entities for the community
// server. These are pure Go structs with no external dependencies,
// representing the fundamental concepts of the application.
package domain

import (
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	// RoleAdmin grants full administrative privileges: content management,
	// user administration and comment moderation.
	RoleAdmin Role = "admin"

	// RolePlayer is the default role for registered users.
	RolePlayer Role = "player"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePlayer
}

// RootUserID is the fixed ID of the bootstrap administrator. This account
// can never be deleted or deactivated.
const RootUserID int64 = 1

// DefaultAvatar is assigned to accounts created without an avatar.
const DefaultAvatar = "https://images.pexels.com/photos/2379004/pexels-photo-2379004.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&fit=crop"

// DefaultStatus is the profile status assigned at registration.
const DefaultStatus = "Nuevo jugador"

// User represents a registered community member.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Role determines the user's authorization level.
	Role Role `json:"role"`

	// Avatar is the URI of the user's avatar image.
	Avatar string `json:"avatar"`

	// Status is a free-text profile status line.
	Status string `json:"status"`

	// IsOnline tracks whether the user currently has an open session.
	IsOnline bool `json:"isOnline"`

	// Clan is the tag of the clan the user belongs to, nil if none.
	// The clan tag is the single source of truth for membership.
	Clan *string `json:"clan"`

	// IsActive indicates whether the account is enabled. Suspended
	// users cannot authenticate and their sessions are invalidated on
	// next use.
	IsActive bool `json:"isActive"`

	// LastLogin is updated on login and on every successful session
	// validity check.
	LastLogin *time.Time `json:"lastLogin"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser creates a new User with registration defaults.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RolePlayer,
		Avatar:       DefaultAvatar,
		Status:       DefaultStatus,
		IsOnline:     true,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsRoot returns true for the bootstrap administrator account.
func (u *User) IsRoot() bool {
	return u.ID == RootUserID
}

// UserStats holds per-user gameplay statistics, created alongside the
// user at registration and surfaced on the ranking page.
type UserStats struct {
	UserID      int64 `json:"userId"`
	Kills       int   `json:"kills"`
	Deaths      int   `json:"deaths"`
	Wins        int   `json:"wins"`
	Losses      int   `json:"losses"`
	HoursPlayed int   `json:"hoursPlayed"`
}

// Score is the ranking score derived from the raw counters.
func (s *UserStats) Score() int {
	return s.Kills*2 + s.Wins*10 - s.Deaths - s.Losses*3
}
