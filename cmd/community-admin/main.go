// Package main is the admin CLI for the community server. It operates
// directly on the configured database, bypassing the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tacops-cl/community-server/internal/config"
	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
	"github.com/tacops-cl/community-server/internal/repository/postgres"
	"github.com/tacops-cl/community-server/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	switch command {
	case "version":
		fmt.Printf("Community Server Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return nil

	case "user-create":
		return runUserCreate(args)
	case "user-list":
		return runUserList(args)
	case "sweep-sessions":
		return runSweepSessions(args)

	case "help", "-h", "--help":
		printUsage()
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runUserCreate(args []string) error {
	fs := flag.NewFlagSet("user-create", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	admin := fs.Bool("admin", false, "grant administrator role")
	_ = fs.Parse(args)

	if *username == "" || *password == "" {
		return fmt.Errorf("username and password are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stores, closeDB, err := openStores(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := domain.NewUser(*username, *email, string(hash))
	user.IsOnline = false
	if *admin {
		user.Role = domain.RoleAdmin
	}

	if err := stores.Users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if err := stores.Users.CreateStats(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to create user stats: %w", err)
	}

	fmt.Printf("created user %q with ID %d\n", user.Username, user.ID)
	return nil
}

func runUserList(args []string) error {
	fs := flag.NewFlagSet("user-list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stores, closeDB, err := openStores(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	users, err := stores.Users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tACTIVE")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.Role, u.IsActive)
	}
	return w.Flush()
}

func runSweepSessions(args []string) error {
	fs := flag.NewFlagSet("sweep-sessions", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stores, closeDB, err := openStores(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	swept, err := stores.Sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}

	fmt.Printf("swept %d expired sessions\n", swept)
	return nil
}

func openStores(ctx context.Context, configPath string) (*repository.Stores, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewStores(db), func() { db.Close() }, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewStores(db), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func printUsage() {
	fmt.Println(`Community Server Admin CLI

Usage:
  community-admin <command> [arguments]

Commands:
  user-create      Create a user (--username, --email, --password, --admin)
  user-list        List all users
  sweep-sessions   Delete expired sessions now
  version          Print version information
  help             Show this help message

Examples:
  community-admin user-create --username admin --email admin@tacops.cl --password secret --admin
  community-admin user-list --config config.yaml
  community-admin sweep-sessions`)
}
