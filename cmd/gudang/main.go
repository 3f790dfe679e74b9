package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/gudangmitra/gudang/internal/api"
	"github.com/gudangmitra/gudang/internal/auth"
	"github.com/gudangmitra/gudang/internal/config"
	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
	"github.com/gudangmitra/gudang/internal/workflow"
)

const usage = `Usage: gudang <init|serve> [flags]

Commands:
  init    create the schema and the admin account
  serve   run the HTTP API (initializes an empty database first)

Flags:
  -d, -db <dsn>           database file or postgres:// URL (env DATABASE_URL)
  -a, -addr <host:port>   listen address, serve only (env HTTP_ADDR)
  -e, -email <email>      admin email on first run (env ADMIN_EMAIL)
  -l, -log <path>         log file path (env LOG_FILE)
  -h, -help               show this help and exit
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		os.Exit(cmdInit(cfg, os.Args[2:]))
	case "serve":
		os.Exit(cmdServe(cfg, os.Args[2:]))
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

// parseFlags applies command-line overrides on top of cfg.
func parseFlags(name string, cfg *config.Config, args []string) bool {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "")
	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "")
	fs.StringVar(&cfg.AdminEmail, "email", cfg.AdminEmail, "")
	fs.StringVar(&cfg.AdminEmail, "e", cfg.AdminEmail, "")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "")
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return false
	}
	return true
}

func cmdInit(cfg config.Config, args []string) int {
	if !parseFlags("init", &cfg, args) {
		return 1
	}
	closeLog, err := setupLogger(cfg.LogFile, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	database, err := openDatabase(cfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	defer database.Close()

	password, err := ensureAdmin(context.Background(), database, cfg.AdminEmail)
	if err != nil {
		slog.Error("failed to create admin account", "error", err)
		return 1
	}
	if password == "" {
		fmt.Printf("Admin account %s already exists; nothing to do.\n", cfg.AdminEmail)
		return 0
	}
	printInitResult(cfg.DatabaseURL, cfg.AdminEmail, password)
	return 0
}

func cmdServe(cfg config.Config, args []string) int {
	if !parseFlags("serve", &cfg, args) {
		return 1
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.LogFile, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := openDatabase(cfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	defer database.Close()

	// An empty database gets its admin on first start.
	users, err := store.ListUsers(ctx, database)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		return 1
	}
	if len(users) == 0 {
		password, err := ensureAdmin(ctx, database, cfg.AdminEmail)
		if err != nil {
			slog.Error("failed to create admin account", "error", err)
			return 1
		}
		printInitResult(cfg.DatabaseURL, cfg.AdminEmail, password)
		fmt.Println()
	}

	// JWT_SECRET wins; otherwise use the one generated on first run.
	secret := cfg.JWTSecret
	if secret == "" {
		if secret, err = store.GetJWTSecret(ctx, database); err != nil {
			slog.Error("failed to get JWT secret", "error", err)
			return 1
		}
	}

	events, err := startEvents(ctx, cfg, database)
	if err != nil {
		slog.Error("failed to start event pipeline", "error", err)
		return 1
	}
	defer events.Close()

	svc := &workflow.Service{DB: database, Events: events.publisher, Producer: cfg.ServiceName}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		svc.RunOverdueSweeper(ctx, cfg.OverdueSweepInterval)
	}()

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Options{
			DB:             database,
			Workflow:       svc,
			Issuer:         auth.NewIssuer(secret, cfg.ServiceName),
			Production:     cfg.Production(),
			Timeout:        cfg.RequestTimeout,
			AllowedOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM. In-flight requests finish before
	// the event pipeline and database close.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.HTTPAddr, "env", cfg.Env, "sweep_interval", cfg.OverdueSweepInterval)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		stop()
		<-sweepDone
		return 1
	}

	<-shutdownDone
	<-sweepDone
	slog.Info("server stopped, closing database")
	return 0
}

// openDatabase connects and brings the schema up to date.
func openDatabase(cfg config.Config) (*sqlx.DB, error) {
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	version, _ := db.Version(database)
	slog.Info("database ready", "driver", database.DriverName(), "schema_version", version)
	return database, nil
}

// ensureAdmin creates the admin account when no active user has email. It
// returns the generated password, or "" when the account already exists.
func ensureAdmin(ctx context.Context, database *sqlx.DB, email string) (string, error) {
	existing, err := store.GetUserByEmail(ctx, database, email)
	if err != nil {
		return "", err
	}
	if existing != nil && existing.DeletedAt == nil {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, "Administrator", email, string(hash), model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	slog.Info("admin account created", "email", email)
	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dsn, email, password string) {
	fmt.Printf("Database ready: %s\n", redactDSN(dsn))
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// redactDSN hides credentials in a postgres URL.
func redactDSN(dsn string) string {
	if !db.IsPostgresDSN(dsn) {
		return dsn
	}
	return "postgres database"
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
