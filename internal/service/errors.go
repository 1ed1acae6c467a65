// Package service provides business logic for the community server.
package service

import "errors"

// Common service errors. Business rule violations live in the domain
// package; these cover input validation and infrastructure failures.
var (
	ErrInvalidPassword = errors.New("invalid password: must be at least 6 characters")
	ErrInvalidUsername = errors.New("invalid username: must be 3-32 characters")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidRole     = errors.New("invalid role")
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrClanNameEmpty   = errors.New("clan name cannot be empty")

	ErrInternalError = errors.New("internal server error")
)
