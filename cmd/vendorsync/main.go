package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to config.toml (default: search ., ./config, $HOME/.vendorsync)")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return 2
	}

	// .env is optional
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		return 1
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			log.Error("Error closing local store", zap.Error(err))
		}
	}()

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}
	if err := cmd(ctx, a, args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(`vendorsync - offline-first field sales client

Usage:
  vendorsync [flags] <command> [arguments]

Commands:
  login <username> <password>   Sign in; falls back to remembered credentials offline
  logout                        Sign out and forget the session
  sync [full|catalog|orders|clients|history]
                                Run a sync (default: full)
  status                        Show local counts and, when reachable, the server view
  watch                         Probe connectivity and sync on every reconnect
  migrate [up|version]          Apply or inspect the local schema (default: up)
  products [search]             List active products, optionally filtered
  cart [show|add|set|remove|clear|checkout]
                                Inspect and edit the cart:
                                  cart add <productId> <qty> [clientId]
                                  cart set <productId> <qty>
                                  cart remove <productId>
                                  cart checkout [clientId] [note]
  reset -confirm                Delete every local row and cached image

Flags:
  -config string                Path to config.toml
  -log-level string             Override the configured log level

Environment Variables:
  VENDORSYNC_REMOTE_BASE_URL, VENDORSYNC_STORE_PATH, VENDORSYNC_LOG_LEVEL, ...`)
}
