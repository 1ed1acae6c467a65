package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/service"
)

// Client-side session cadence, surfaced through check-session so the
// frontend polls and warns in step with the server's expiry.
const (
	clientCheckInterval = 60 * time.Second
	clientWarningWindow = 5 * time.Minute
)

// AuthHandler handles registration, login, and session lifecycle.
type AuthHandler struct {
	sessions *service.SessionService
	cookies  sessionCookies
	ttl      time.Duration
	logger   zerolog.Logger
}

// AuthConfig contains configuration for the auth handler.
type AuthConfig struct {
	SessionService *service.SessionService
	Session        config.SessionConfig
	Logger         zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(cfg AuthConfig) *AuthHandler {
	return &AuthHandler{
		sessions: cfg.SessionService,
		cookies: sessionCookies{
			name:   cfg.Session.CookieName,
			secure: cfg.Session.CookieSecure,
		},
		ttl:    cfg.Session.TTL,
		logger: cfg.Logger.With().Str("handler", "auth").Logger(),
	}
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.sessions.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.cookies.set(w, out.Session.Token, h.ttl)
	respond(w, http.StatusOK, envelope{
		"user":    out.User,
		"message": "login successful",
	})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.sessions.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.cookies.set(w, out.Session.Token, h.ttl)
	respond(w, http.StatusCreated, envelope{
		"user":    out.User,
		"message": "registration successful",
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), session.Token); err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.cookies.clear(w)
	respondMessage(w, http.StatusOK, "logged out")
}

// handleCheckSession reports the authenticated user and how much
// session time remains. Validation itself already ran in the session
// middleware; this handler only shapes the payload.
func (h *AuthHandler) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	user, _ := UserFromContext(r.Context())

	respond(w, http.StatusOK, envelope{
		"user":          user,
		"sessionTime":   int64(session.Remaining(time.Now().UTC()) / time.Second),
		"checkInterval": int64(clientCheckInterval / time.Second),
		"warningTime":   int64(clientWarningWindow / time.Second),
		"message":       "session valid",
	})
}

// handleExtendSession renews the session and rotates its token; the
// new token replaces the cookie in the same response.
func (h *AuthHandler) handleExtendSession(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	out, err := h.sessions.Extend(r.Context(), session.Token)
	if err != nil {
		h.cookies.clear(w)
		respondError(w, h.logger, err)
		return
	}

	h.cookies.set(w, out.Session.Token, h.ttl)
	respond(w, http.StatusOK, envelope{
		"message":       "session extended",
		"sessionTime":   int64(out.Session.Remaining(time.Now().UTC()) / time.Second),
		"extendedUntil": out.Session.ExpiresAt,
	})
}
