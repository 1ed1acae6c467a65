package domain

import (
	"strings"
	"time"
)

// MaxClanTagLength is the maximum length of a clan tag.
const MaxClanTagLength = 8

// Clan is a player clan. Membership is not stored on the clan; the
// user's Clan field holds the tag and member counts are derived.
type Clan struct {
	// ID is the unique identifier for the clan (auto-generated).
	ID int64 `json:"id"`

	// Name is the unique display name.
	Name string `json:"name"`

	// Tag is the unique, upper-cased short tag (at most 8 characters).
	Tag string `json:"tag"`

	// Logo is an optional logo URI.
	Logo string `json:"logo"`

	// Description is free text.
	Description string `json:"description"`

	// CreatedAt is when the clan was created.
	CreatedAt time.Time `json:"createdAt"`

	// MemberCount is derived from users whose clan equals Tag.
	MemberCount int64 `json:"memberCount"`
}

// NormalizeClanTag upper-cases and trims a tag to its canonical form.
func NormalizeClanTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// ValidateClanTag checks the canonical form of a tag.
func ValidateClanTag(tag string) error {
	if tag == "" {
		return ErrClanTagRequired
	}
	if len(tag) > MaxClanTagLength {
		return ErrClanTagTooLong
	}
	return nil
}
