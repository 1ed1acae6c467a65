// Package handler provides the JSON-over-HTTP API for the community server.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/repository"
)

// Router assembles the API routes.
type Router struct {
	auth       *AuthHandler
	news       *NewsHandler
	clans      *ClanHandler
	users      *UserHandler
	messages   *MessageHandler
	uploads    *UploadHandler
	middleware *Middleware
	db         repository.DatabaseHealth
	logger     zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	NewsHandler    *NewsHandler
	ClanHandler    *ClanHandler
	UserHandler    *UserHandler
	MessageHandler *MessageHandler
	UploadHandler  *UploadHandler
	Middleware     *Middleware
	Database       repository.DatabaseHealth
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		auth:       config.AuthHandler,
		news:       config.NewsHandler,
		clans:      config.ClanHandler,
		users:      config.UserHandler,
		messages:   config.MessageHandler,
		uploads:    config.UploadHandler,
		middleware: config.Middleware,
		db:         config.Database,
		logger:     config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the assembled HTTP handler.
func (rt *Router) Handler() http.Handler {
	m := rt.middleware

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(m.CORS)
	r.Use(m.Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", rt.handleHealth)
	r.Get("/uploads/{hash}", rt.uploads.handleDownload)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", rt.auth.handleLogin)
			ar.Post("/register", rt.auth.handleRegister)

			ar.Group(func(sr chi.Router) {
				sr.Use(m.RequireSession)
				sr.Post("/logout", rt.auth.handleLogout)
				sr.Get("/check-session", rt.auth.handleCheckSession)
				sr.Post("/extend-session", rt.auth.handleExtendSession)
			})
		})

		api.Route("/news", func(nr chi.Router) {
			nr.Get("/get-all", rt.news.handleGetAll)
			nr.Post("/view", rt.news.handleView)

			nr.Group(func(sr chi.Router) {
				sr.Use(m.RequireSession)
				sr.Post("/comment", rt.news.handleComment)
				sr.Post("/like", rt.news.handleLike)
			})

			nr.Group(func(adm chi.Router) {
				adm.Use(m.RequireSession, m.RequireAdmin)
				adm.Post("/create", rt.news.handleCreate)
				adm.Post("/update", rt.news.handleUpdate)
				adm.Post("/delete", rt.news.handleDelete)
				adm.Post("/delete-comment", rt.news.handleDeleteComment)
				adm.Post("/restore-comment", rt.news.handleRestoreComment)
				adm.Get("/get-deleted-comments", rt.news.handleGetDeletedComments)
			})
		})

		api.Route("/clans", func(cr chi.Router) {
			cr.Get("/get-all", rt.clans.handleGetAll)

			cr.Group(func(adm chi.Router) {
				adm.Use(m.RequireSession, m.RequireAdmin)
				adm.Post("/create", rt.clans.handleCreate)
				adm.Post("/update", rt.clans.handleUpdate)
				adm.Post("/delete", rt.clans.handleDelete)
			})
		})

		api.Route("/users", func(ur chi.Router) {
			ur.Get("/ranking", rt.users.handleRanking)

			ur.Group(func(sr chi.Router) {
				sr.Use(m.RequireSession)
				sr.Get("/get-all", rt.users.handleGetAll)
				sr.Post("/update", rt.users.handleUpdate)
			})

			ur.Group(func(adm chi.Router) {
				adm.Use(m.RequireSession, m.RequireAdmin)
				adm.Post("/toggle-status", rt.users.handleToggleStatus)
				adm.Post("/delete", rt.users.handleDelete)
			})
		})

		api.Route("/messages", func(mr chi.Router) {
			mr.Use(m.RequireSession)
			mr.Post("/send", rt.messages.handleSend)
			mr.Get("/get-conversation", rt.messages.handleGetConversation)
			mr.Get("/unread", rt.messages.handleUnread)
		})

		api.With(m.RequireSession).Post("/uploads", rt.uploads.handleUpload)
	})

	return r
}

// handleHealth reports whether the database is reachable.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := rt.db.Ping(ctx); err != nil {
		rt.logger.Error().Err(err).Msg("health check failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
