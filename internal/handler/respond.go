package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/service"
)

// envelope is the response payload. Every response carries a "success"
// flag; error responses additionally carry a "message".
type envelope map[string]any

// respond writes a success envelope with the given extra fields.
func respond(w http.ResponseWriter, status int, payload envelope) {
	body := envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// respondMessage writes a success envelope with only a message.
func respondMessage(w http.ResponseWriter, status int, message string) {
	respond(w, status, envelope{"message": message})
}

// respondError maps an error to its HTTP status and writes the failure
// envelope. Unmapped errors are logged and reported as a generic 500;
// their text never reaches the client.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			writeFailure(w, m.status, m.err.Error())
			return
		}
	}
	logger.Error().Err(err).Msg("request failed")
	writeFailure(w, http.StatusInternalServerError, "internal server error")
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorStatus maps domain and service sentinels to HTTP statuses.
// Order matters only in that the first match wins; the entries are
// disjoint. Anything not listed is an internal error.
var errorStatus = []struct {
	err    error
	status int
}{
	// Validation failures.
	{service.ErrInvalidPassword, http.StatusBadRequest},
	{service.ErrInvalidUsername, http.StatusBadRequest},
	{service.ErrInvalidEmail, http.StatusBadRequest},
	{service.ErrInvalidRole, http.StatusBadRequest},
	{service.ErrEmptyTitle, http.StatusBadRequest},
	{service.ErrEmptyContent, http.StatusBadRequest},
	{service.ErrClanNameEmpty, http.StatusBadRequest},
	{domain.ErrCommentEmpty, http.StatusBadRequest},
	{domain.ErrMessageEmpty, http.StatusBadRequest},
	{domain.ErrMessageToSelf, http.StatusBadRequest},
	{domain.ErrClanTagRequired, http.StatusBadRequest},
	{domain.ErrClanTagTooLong, http.StatusBadRequest},
	{domain.ErrUserAlreadyExists, http.StatusBadRequest},
	{domain.ErrClanAlreadyExists, http.StatusBadRequest},
	{domain.ErrRootUserProtected, http.StatusBadRequest},
	{domain.ErrUploadTooLarge, http.StatusBadRequest},

	// Authentication failures.
	{domain.ErrSessionInvalid, http.StatusUnauthorized},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrUserInactive, http.StatusUnauthorized},

	// Authorization failures.
	{domain.ErrAccessDenied, http.StatusForbidden},

	// Missing or wrong-state entities.
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrNewsNotFound, http.StatusNotFound},
	{domain.ErrCommentNotFound, http.StatusNotFound},
	{domain.ErrClanNotFound, http.StatusNotFound},
	{domain.ErrMessageNotFound, http.StatusNotFound},
	{domain.ErrRecipientNotFound, http.StatusNotFound},
	{domain.ErrBlobNotFound, http.StatusNotFound},
}

// decodeJSON decodes a request body into dst. A malformed or empty body
// is a client error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid request body")
	}
	return nil
}
