// Package main is the migration tool for the community server database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/repository/postgres"
	"github.com/tacops-cl/community-server/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	if err := run(*configPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, command string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "up":
		return migrateUp(ctx, cfg, logger)
	case "status":
		return printStatus(ctx, cfg, logger)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func migrateUp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func printStatus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var version int
	var err error

	switch cfg.Database.Driver {
	case "sqlite":
		db, dbErr := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if dbErr != nil {
			return dbErr
		}
		defer db.Close()
		version, err = db.SchemaVersion(ctx)

	case "postgres":
		db, dbErr := postgres.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			return dbErr
		}
		defer db.Close()
		version, err = db.SchemaVersion(ctx)

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if err != nil {
		return err
	}

	fmt.Printf("driver:  %s\n", cfg.Database.Driver)
	fmt.Printf("version: %d\n", version)
	return nil
}

func printUsage() {
	fmt.Println(`Community Server Migration Tool

Usage:
  community-migrate [-config path] <command>

Commands:
  up       Apply pending migrations
  status   Print the current schema version
  help     Show this help message`)
}
