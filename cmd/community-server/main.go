// Package main is the entry point for the Tactical Ops Chile community server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/handler"
	"github.com/tacops-cl/community-server/internal/lock"
	"github.com/tacops-cl/community-server/internal/metrics"
	"github.com/tacops-cl/community-server/internal/repository"
	"github.com/tacops-cl/community-server/internal/repository/postgres"
	"github.com/tacops-cl/community-server/internal/repository/redisrepo"
	"github.com/tacops-cl/community-server/internal/repository/sqlite"
	"github.com/tacops-cl/community-server/internal/service"
	"github.com/tacops-cl/community-server/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting community server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Redis backs the session store and distributed locks when enabled.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisrepo.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
	}

	stores, db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Session.Store == "redis" {
		if redisClient == nil {
			return errors.New("session.store is redis but redis is disabled")
		}
		stores.Sessions = redisrepo.NewSessionRepository(redisClient)
	}

	var locker lock.Locker
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient)
	} else {
		locker = lock.NewMemoryLocker()
	}

	backend, err := newStorageBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	if err := bootstrapRootAdmin(ctx, stores.Users, cfg.Bootstrap, logger); err != nil {
		return fmt.Errorf("failed to bootstrap root administrator: %w", err)
	}

	sessionService := service.NewSessionService(
		stores.Sessions, stores.Users,
		cfg.Session.TTL, cfg.Session.AutoExtendWindow,
		m, logger,
	)
	userService := service.NewUserService(stores.Users, stores.Sessions, logger)
	newsService := service.NewNewsService(stores.News, stores.Comments, locker, m, logger)
	moderationService := service.NewModerationService(stores.Comments, m, logger)
	clanService := service.NewClanService(stores.Clans, locker, logger)
	messageService := service.NewMessageService(stores.Messages, stores.Users, logger)
	uploadService := service.NewUploadService(backend, cfg.Storage.MaxUploadSize, logger)

	sweeper := service.NewSessionSweeper(stores.Sessions, locker, m, logger, cfg.Session.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	mw := handler.NewMiddleware(handler.MiddlewareConfig{
		SessionService: sessionService,
		Session:        cfg.Session,
		CORS:           cfg.CORS,
		Metrics:        m,
		Logger:         logger,
	})

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler: handler.NewAuthHandler(handler.AuthConfig{
			SessionService: sessionService,
			Session:        cfg.Session,
			Logger:         logger,
		}),
		NewsHandler: handler.NewNewsHandler(handler.NewsConfig{
			NewsService:       newsService,
			ModerationService: moderationService,
			Logger:            logger,
		}),
		ClanHandler: handler.NewClanHandler(handler.ClanConfig{
			ClanService: clanService,
			Logger:      logger,
		}),
		UserHandler: handler.NewUserHandler(handler.UserConfig{
			UserService: userService,
			Logger:      logger,
		}),
		MessageHandler: handler.NewMessageHandler(handler.MessageConfig{
			MessageService: messageService,
			Logger:         logger,
		}),
		UploadHandler: handler.NewUploadHandler(handler.UploadConfig{
			UploadService: uploadService,
			Logger:        logger,
		}),
		Middleware: mw,
		Database:   db,
		Logger:     logger,
	})

	apiHandler := router.Handler()
	if cfg.Server.MaxBodySize > 0 {
		apiHandler = http.MaxBytesHandler(apiHandler, cfg.Server.MaxBodySize)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics, m, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	var w zerolog.Logger
	if cfg.Format == "console" {
		w = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		w = zerolog.New(out)
	}
	return w.Level(level).With().Timestamp().Logger()
}

// openDatabase connects to the configured backend, runs migrations,
// and returns the repository set plus a close function.
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Stores, repository.DatabaseHealth, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqliteConfig(cfg.Database), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		return sqlite.NewStores(db), db, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres database: %w", err)
		}
		return postgres.NewStores(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// sqliteConfig maps the shared database configuration onto the SQLite
// connection settings, keeping the embedded defaults for unset fields.
func sqliteConfig(cfg config.DatabaseConfig) sqlite.Config {
	sc := sqlite.DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		sc.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		sc.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.CacheSize != 0 {
		sc.CacheSize = cfg.CacheSize
	}
	if cfg.SynchronousMode != "" {
		sc.SynchronousMode = cfg.SynchronousMode
	}
	return sc
}

func newStorageBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "filesystem":
		return storage.NewFilesystemBackend(cfg.DataDir, logger)
	case "s3":
		return storage.NewS3Backend(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// bootstrapRootAdmin creates the root administrator on first run. The
// first row inserted into an empty users table takes ID 1, which is
// the protected root account.
func bootstrapRootAdmin(ctx context.Context, users repository.UserRepository, cfg config.BootstrapConfig, logger zerolog.Logger) error {
	count, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		logger.Warn().Msg("users table is empty and no bootstrap admin is configured")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := domain.NewUser(cfg.AdminUsername, cfg.AdminEmail, string(hash))
	admin.Role = domain.RoleAdmin
	admin.IsOnline = false

	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	if err := users.CreateStats(ctx, admin.ID); err != nil {
		return err
	}

	logger.Info().
		Int64("user_id", admin.ID).
		Str("username", admin.Username).
		Msg("root administrator created")
	return nil
}

// startMetricsServer serves Prometheus metrics on its own port.
func startMetricsServer(cfg config.MetricsConfig, m *metrics.Metrics, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, m.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("path", cfg.Path).Msg("metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return server
}
