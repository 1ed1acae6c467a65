package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/lock"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/repository"
	"github.com/tacops-cl/community-server/internal/repository/sqlite"
	"github.com/tacops-cl/community-server/internal/service"
	"github.com/tacops-cl/community-server/internal/storage"
)

const (
	testCookieName = "tacops_session"
	testOrigin     = "http://localhost:5173"
)

// testServer wires the full API over an in-memory database so tests
// exercise the real routing, middleware, and envelope shapes.
type testServer struct {
	handler http.Handler
	stores  *repository.Stores
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(context.Background(), sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	stores := sqlite.NewStores(db)
	locker := lock.NewMemoryLocker()
	m := metrics.New()

	backend, err := storage.NewFilesystemBackend(t.TempDir(), logger)
	require.NoError(t, err)

	sessionCfg := config.SessionConfig{
		TTL:              20 * time.Minute,
		AutoExtendWindow: 5 * time.Minute,
		CookieName:       testCookieName,
	}

	sessions := service.NewSessionService(stores.Sessions, stores.Users, sessionCfg.TTL, sessionCfg.AutoExtendWindow, m, logger)
	users := service.NewUserService(stores.Users, stores.Sessions, logger)
	news := service.NewNewsService(stores.News, stores.Comments, locker, m, logger)
	moderation := service.NewModerationService(stores.Comments, m, logger)
	clans := service.NewClanService(stores.Clans, locker, logger)
	messages := service.NewMessageService(stores.Messages, stores.Users, logger)
	uploads := service.NewUploadService(backend, 1<<20, logger)

	mw := NewMiddleware(MiddlewareConfig{
		SessionService: sessions,
		Session:        sessionCfg,
		CORS:           config.CORSConfig{Origin: testOrigin},
		Metrics:        m,
		Logger:         logger,
	})

	router := NewRouter(RouterConfig{
		AuthHandler:    NewAuthHandler(AuthConfig{SessionService: sessions, Session: sessionCfg, Logger: logger}),
		NewsHandler:    NewNewsHandler(NewsConfig{NewsService: news, ModerationService: moderation, Logger: logger}),
		ClanHandler:    NewClanHandler(ClanConfig{ClanService: clans, Logger: logger}),
		UserHandler:    NewUserHandler(UserConfig{UserService: users, Logger: logger}),
		MessageHandler: NewMessageHandler(MessageConfig{MessageService: messages, Logger: logger}),
		UploadHandler:  NewUploadHandler(UploadConfig{UploadService: uploads, Logger: logger}),
		Middleware:     mw,
		Database:       db,
		Logger:         logger,
	})

	return &testServer{handler: router.Handler(), stores: stores}
}

// do performs a request with an optional JSON body and session cookie.
func (ts *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	return nil
}

// register creates a user through the API and returns its session cookie.
func (ts *testServer) register(t *testing.T, username string) *http.Cookie {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": username,
		"email":    username + "@tacops.cl",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	return cookie
}

// registerAdmin registers a user and grants it the admin role directly
// in the store, then logs in again so the cached context user is fresh.
func (ts *testServer) registerAdmin(t *testing.T, username string) *http.Cookie {
	t.Helper()
	ts.register(t, username)

	user, err := ts.stores.Users.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	role := domain.RoleAdmin
	require.NoError(t, ts.stores.Users.ApplyPatch(context.Background(), user.ID, repository.UserPatch{Role: &role}))

	w := ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": username,
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return sessionCookie(w)
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestRouter_RegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.register(t, "alice")

	w := ts.do(t, http.MethodGet, "/api/auth/check-session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, "alice", body["user"].(map[string]any)["username"])
	require.Greater(t, body["sessionTime"].(float64), float64(0))
	require.Equal(t, float64(60), body["checkInterval"])
	require.Equal(t, float64(300), body["warningTime"])

	w = ts.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)

	// The destroyed session no longer authenticates.
	w = ts.do(t, http.MethodGet, "/api/auth/check-session", nil, cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])
}

func TestRouter_LoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")

	w := ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "alice",
		"password": "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])
	require.Nil(t, sessionCookie(w))
}

func TestRouter_MissingSessionCookie(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/users/get-all", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])

	// The (absent) cookie is cleared so the client stops sending it.
	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)
}

func TestRouter_ExtendSessionRotatesCookie(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.register(t, "alice")

	w := ts.do(t, http.MethodPost, "/api/auth/extend-session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	rotated := sessionCookie(w)
	require.NotNil(t, rotated)
	require.NotEqual(t, cookie.Value, rotated.Value)

	// The old token lost the rotation; only the new one authenticates.
	w = ts.do(t, http.MethodGet, "/api/auth/check-session", nil, cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/auth/check-session", nil, rotated)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminGate(t *testing.T) {
	ts := newTestServer(t)
	userCookie := ts.register(t, "alice")

	payload := map[string]any{"title": "Anuncio", "content": "contenido"}

	w := ts.do(t, http.MethodPost, "/api/news/create", payload, userCookie)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])

	adminCookie := ts.registerAdmin(t, "admin")
	w = ts.do(t, http.MethodPost, "/api/news/create", payload, adminCookie)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Anuncio", body["news"].(map[string]any)["title"])
}

func TestRouter_NewsCommentAndLike(t *testing.T) {
	ts := newTestServer(t)
	adminCookie := ts.registerAdmin(t, "admin")
	userCookie := ts.register(t, "alice")

	w := ts.do(t, http.MethodPost, "/api/news/create", map[string]any{
		"title": "Torneo", "content": "detalles",
	}, adminCookie)
	require.Equal(t, http.StatusCreated, w.Code)
	newsID := decodeBody(t, w)["news"].(map[string]any)["id"].(float64)

	w = ts.do(t, http.MethodPost, "/api/news/comment", map[string]any{
		"newsId": newsID, "content": "me apunto",
	}, userCookie)
	require.Equal(t, http.StatusCreated, w.Code)
	comment := decodeBody(t, w)["comment"].(map[string]any)
	require.Equal(t, "me apunto", comment["content"])
	require.Equal(t, "alice", comment["author"])

	w = ts.do(t, http.MethodPost, "/api/news/like", map[string]any{"newsId": newsID}, userCookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "liked", body["action"])
	require.Equal(t, float64(1), body["likes"])

	w = ts.do(t, http.MethodPost, "/api/news/like", map[string]any{"newsId": newsID}, userCookie)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	require.Equal(t, "unliked", body["action"])
	require.Equal(t, float64(0), body["likes"])
}

func TestRouter_MessageToSelfRejected(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.register(t, "alice")

	user, err := ts.stores.Users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)

	w := ts.do(t, http.MethodPost, "/api/messages/send", map[string]any{
		"toUserId": user.ID, "content": "hola yo",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])
}

func TestRouter_UserUpdateSelfOrAdmin(t *testing.T) {
	ts := newTestServer(t)
	aliceCookie := ts.register(t, "alice")
	ts.register(t, "bob")

	bob, err := ts.stores.Users.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)

	status := "jugando"
	w := ts.do(t, http.MethodPost, "/api/users/update", map[string]any{
		"id": bob.ID, "status": status,
	}, aliceCookie)
	require.Equal(t, http.StatusForbidden, w.Code)

	alice, err := ts.stores.Users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	w = ts.do(t, http.MethodPost, "/api/users/update", map[string]any{
		"id": alice.ID, "status": status,
	}, aliceCookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "jugando", decodeBody(t, w)["user"].(map[string]any)["status"])
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])

	w = ts.do(t, http.MethodGet, "/api/auth/login", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, false, decodeBody(t, w)["success"])
}

func TestRouter_CORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	// Unknown origins get no CORS headers at all.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
