package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/fieldsales/vendorsync/internal/infrastructure/telemetry"
	"github.com/fieldsales/vendorsync/internal/interfaces/devserver"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		port       string
	)
	flag.StringVar(&configPath, "config", "", "Path to config.toml")
	flag.StringVar(&port, "port", "", "Override devserver.port")
	flag.Parse()

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
		panic("Failed to load configuration: " + err.Error())
	}
	if port != "" {
		cfg.DevServer.Port = port
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	log = providers.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error("Error flushing telemetry", zap.Error(err))
		}
	}()

	log.Info("Starting contract server",
		zap.String("port", cfg.DevServer.Port),
		zap.String("vendor", cfg.DevServer.VendorUsername),
		zap.Bool("redis", cfg.DevServer.UseRedis),
	)

	srv, err := devserver.New(cfg.DevServer, log)
	if err != nil {
		log.Fatal("Failed to create contract server", zap.Error(err))
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	fmt.Printf("Sign in with %s / %s at http://localhost:%s%s\n",
		cfg.DevServer.VendorUsername, cfg.DevServer.VendorPassword, cfg.DevServer.Port, devserver.RPCPath)
	if err := srv.Run(ctx); err != nil {
		log.Error("Contract server stopped", zap.Error(err))
		return
	}
	log.Info("Contract server exited gracefully")
}
