// Package domain contains the core business entities for the community server.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is suspended.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRootUserProtected indicates an attempt to delete or suspend the
	// bootstrap administrator (user ID 1).
	ErrRootUserProtected = errors.New("root administrator cannot be modified")

	// ===========================================
	// Session Errors
	// ===========================================

	// ErrSessionInvalid is the uniform failure for any invalid session:
	// missing, expired, or revoked. Callers must not be able to
	// distinguish these cases.
	ErrSessionInvalid = errors.New("session is invalid")

	// ===========================================
	// News / Comment Errors
	// ===========================================

	// ErrNewsNotFound indicates the requested news item does not exist.
	ErrNewsNotFound = errors.New("news item not found")

	// ErrCommentNotFound indicates the comment does not exist or is not in
	// the state the operation requires (delete on already-deleted,
	// restore on not-deleted).
	ErrCommentNotFound = errors.New("comment not found")

	// ErrCommentEmpty indicates the comment content is empty after trimming.
	ErrCommentEmpty = errors.New("comment content cannot be empty")

	// ===========================================
	// Clan Errors
	// ===========================================

	// ErrClanNotFound indicates the requested clan does not exist.
	ErrClanNotFound = errors.New("clan not found")

	// ErrClanAlreadyExists indicates a clan with the same name or tag exists.
	ErrClanAlreadyExists = errors.New("clan already exists")

	// ErrClanTagRequired indicates the tag was missing.
	ErrClanTagRequired = errors.New("clan tag is required")

	// ErrClanTagTooLong indicates the tag exceeds 8 characters.
	ErrClanTagTooLong = errors.New("clan tag must be at most 8 characters")

	// ===========================================
	// Message Errors
	// ===========================================

	// ErrMessageNotFound indicates the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageEmpty indicates the message content is empty after trimming.
	ErrMessageEmpty = errors.New("message content cannot be empty")

	// ErrMessageToSelf indicates sender and recipient are the same user.
	ErrMessageToSelf = errors.New("cannot send a message to yourself")

	// ErrRecipientNotFound indicates the recipient does not exist or is inactive.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ===========================================
	// Upload / Blob Errors
	// ===========================================

	// ErrBlobNotFound indicates the requested upload does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrUploadTooLarge indicates the upload exceeds the configured limit.
	ErrUploadTooLarge = errors.New("upload exceeds maximum size")

	// ===========================================
	// Authorization Errors
	// ===========================================

	// ErrAccessDenied indicates the user does not have permission.
	ErrAccessDenied = errors.New("access denied")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., username, clan tag).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
