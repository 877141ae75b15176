package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/FlowCanvas/internal/api"
	"github.com/BTreeMap/FlowCanvas/internal/store"
	"github.com/BTreeMap/FlowCanvas/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FlowCanvas state data
	DefaultStateDir = "/var/lib/flowcanvas"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "flowcanvas.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	// Load the environment first so the logger can honor FLOWCANVAS_DEBUG.
	config := loadEnvironmentConfig()
	initializeLogger()

	flags := parseCommandLineFlags(config)

	repo, err := buildRepository(flags)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(repo, api.WithUndoLimit(*flags.undoLimit))
	defer server.Close()

	slog.Info("Bootstrapping FlowCanvas", "driver", *flags.dbDriver, "api_addr", *flags.apiAddr)
	if err := server.Run(*flags.apiAddr); err != nil {
		slog.Error("FlowCanvas failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	DbDriver    string
	DatabaseURL string
	StateDir    string
	APIAddr     string
	UndoLimit   int
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDriver  *string
	dbDSN     *string
	apiAddr   *string
	undoLimit *int
}

// initializeLogger sets up structured logging. FLOWCANVAS_DEBUG=true lowers
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("FLOWCANVAS_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:    os.Getenv("FLOWCANVAS_DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("FLOWCANVAS_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
		UndoLimit:   util.ParseIntEnv("FLOWCANVAS_UNDO_LIMIT", 0),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FLOWCANVAS_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	return config
}

// parseCommandLineFlags parses flags with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "Directory for FlowCanvas state data"),
		dbDriver:  flag.String("db-driver", config.DbDriver, "Database driver: memory, sqlite3 or postgres"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "Database connection string (file path for SQLite)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API listen address"),
		undoLimit: flag.Int("undo-limit", config.UndoLimit, "How many destructive edits can be undone per session"),
	}
	flag.Parse()

	// Infer the driver from the DSN when unset.
	if *flags.dbDriver == "" {
		switch {
		case *flags.dbDSN == "":
			*flags.dbDriver = "memory"
		case looksLikePostgres(*flags.dbDSN):
			*flags.dbDriver = "postgres"
		default:
			*flags.dbDriver = "sqlite3"
		}
		slog.Debug("Inferred database driver", "driver", *flags.dbDriver)
	}
	return flags
}

// buildRepository constructs the storage backend selected by the flags.
func buildRepository(flags Flags) (store.Repository, error) {
	switch *flags.dbDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	case "sqlite3":
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("No DSN set, using default SQLite path", "dsn", dsn)
		}
		return store.NewSQLiteStore(store.WithDSN(dsn))
	default:
		slog.Warn("Using in-memory storage, flows will not survive restarts")
		return store.NewMemoryRepository(), nil
	}
}

// looksLikePostgres reports whether the DSN targets PostgreSQL.
func looksLikePostgres(dsn string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if len(dsn) >= len(prefix) && dsn[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
