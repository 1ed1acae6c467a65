package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/service"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	userContextKey    contextKey = "user"
)

// SessionFromContext returns the session attached by RequireSession.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*domain.Session)
	return s, ok
}

// UserFromContext returns the authenticated user attached by RequireSession.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok
}

// sessionCookies writes and clears the session cookie. The cookie is
// HttpOnly and scoped to the whole site; SameSite=Lax lets the SPA
// navigate in while still blocking cross-site POSTs.
type sessionCookies struct {
	name   string
	secure bool
}

func (c sessionCookies) set(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl / time.Second),
	})
}

func (c sessionCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Middleware bundles the cross-cutting HTTP concerns: CORS, request
// metrics, and cookie-session authentication.
type Middleware struct {
	sessions *service.SessionService
	cookies  sessionCookies
	origin   string
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// MiddlewareConfig contains configuration for Middleware.
type MiddlewareConfig struct {
	SessionService *service.SessionService
	Session        config.SessionConfig
	CORS           config.CORSConfig
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// NewMiddleware creates the middleware set.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	return &Middleware{
		sessions: cfg.SessionService,
		cookies: sessionCookies{
			name:   cfg.Session.CookieName,
			secure: cfg.Session.CookieSecure,
		},
		origin:  cfg.CORS.Origin,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "middleware").Logger(),
	}
}

// CORS allows credentialed requests from the single configured origin.
// Preflight requests are answered without hitting the handlers.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && origin == m.origin {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", m.origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Metrics records a counter and duration sample per request, labeled by
// the matched route pattern rather than the raw path.
func (m *Middleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		m.metrics.ObserveRequest(r.Method, path, sw.status, time.Since(start).Seconds())
	})
}

// RequireSession authenticates the request from the session cookie. The
// validity check carries the session's side effects: lastLogin touch,
// lazy expiry, auto-extension near the expiry boundary. Any failure
// clears the cookie and reports 401 without distinguishing the cause.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.sessionToken(r)
		session, user, err := m.sessions.Validate(r.Context(), token)
		if err != nil {
			m.cookies.clear(w)
			respondError(w, m.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route to administrators. Must run inside
// RequireSession.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			respondError(w, m.logger, domain.ErrAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(m.cookies.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// statusWriter captures the response status for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
