package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/fieldsales/vendorsync/internal/infrastructure/migration"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const defaultDeltasPath = "internal/infrastructure/migration/sql"

func main() {
	var (
		deltasPath string
		dbPath     string
		logLevel   string
	)

	flag.StringVar(&deltasPath, "path", "", "Directory of schema deltas (default: embedded set; create/list use ./"+defaultDeltasPath+")")
	flag.StringVar(&dbPath, "db", "", "SQLite file to migrate (default: store.path from config)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	// create and list work on files only
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Delta name required. Usage: migrate create <name> [description]")
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		df, err := migration.CreateDelta(fileDir(deltasPath), args[1], description)
		if err != nil {
			log.Fatal("Failed to create delta", zap.Error(err))
		}
		log.Info("Delta created",
			zap.Uint("version", df.Version),
			zap.String("file", df.Path),
		)
		return

	case "list":
		deltas, err := migration.ListDeltas(fileDir(deltasPath))
		if err != nil {
			log.Fatal("Failed to list deltas", zap.Error(err))
		}
		if len(deltas) == 0 {
			log.Info("No deltas found")
			return
		}
		for _, d := range deltas {
			fmt.Printf("  %04d  %s\n", d.Version, d.Name)
		}
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	ctx := context.Background()
	db, err := persistence.Open(ctx, cfg.Store, log.Named("store"))
	if err != nil {
		log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing local store", zap.Error(err))
		}
	}()

	var opts []migration.Option
	if deltasPath != "" {
		abs, err := filepath.Abs(deltasPath)
		if err != nil {
			log.Fatal("Failed to resolve delta path", zap.Error(err))
		}
		opts = append(opts, migration.WithSource(os.DirFS(abs), "."))
	}
	m, err := migration.New(db.DB, log.Named("migration"), opts...)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("store", cfg.Store.Path),
	)

	switch command {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}
		log.Info("Migrations applied", zap.Uints("versions", applied))

	case "version":
		version, err := m.Version(ctx)
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current schema version", zap.Uint("version", version))
		}

	case "pending":
		pending, err := m.Pending(ctx)
		if err != nil {
			log.Fatal("Failed to list pending deltas", zap.Error(err))
		}
		log.Info("Pending deltas", zap.Uints("versions", pending))

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func fileDir(path string) string {
	if path == "" {
		return defaultDeltasPath
	}
	return path
}

func printUsage() {
	fmt.Println(`vendorsync schema migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending deltas to the local store
  version               Show the stored schema version
  pending               List deltas newer than the stored version
  create <name> [desc]  Create the next numbered delta file
  list                  List delta files

Deltas are forward-only. There is no down.

Flags:
  -path string          Directory of deltas (default: the set built into the binary)
  -db string            SQLite file (default: store.path from config)
  -log-level string     Log level: debug, info, warn, error (default: info)

Examples:
  migrate create add_client_notes "Free text notes per client"
  migrate -db ./vendorsync.db up
  migrate version`)
}
