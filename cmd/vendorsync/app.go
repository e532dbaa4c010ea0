package main

import (
	"context"
	"errors"
	"fmt"

	cartapp "github.com/fieldsales/vendorsync/internal/application/cart"
	"github.com/fieldsales/vendorsync/internal/application/checkout"
	"github.com/fieldsales/vendorsync/internal/application/identity"
	syncapp "github.com/fieldsales/vendorsync/internal/application/sync"
	"github.com/fieldsales/vendorsync/internal/infrastructure/auth"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/connectivity"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/fieldsales/vendorsync/internal/infrastructure/imagecache"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence"
	"github.com/fieldsales/vendorsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// app holds every component wired over one local store
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	telemetry *telemetry.Providers

	store    *persistence.Store
	tokens   *auth.TokenStore
	client   *gateway.Client
	prober   *connectivity.Prober
	images   *imagecache.Cache
	identity *identity.Service
	cart     *cartapp.Service
	checkout *checkout.Service
	orch     *syncapp.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	log = providers.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	a := &app{cfg: cfg, log: log, telemetry: providers}

	db, err := persistence.Open(ctx, cfg.Store, log.Named("store"))
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(ctx))
	}
	if providers.Enabled() {
		if err := telemetry.InstrumentStore(db.DB); err != nil {
			log.Warn("Store tracing unavailable", zap.Error(err))
		}
	}
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, errors.Join(err, db.Close(), providers.Shutdown(ctx))
	}
	a.store = persistence.NewStore(db, log)

	a.tokens = auth.NewTokenStore(a.store.KV)
	a.client = gateway.NewClient(gateway.ConfigFrom(cfg.Remote), a.tokens, log)

	proberCfg := connectivity.ProberConfigFrom(cfg.Connectivity)
	proberCfg.URL = cfg.ProbeTarget()
	a.prober = connectivity.NewProber(proberCfg, log)

	a.images, err = imagecache.New(imagecache.ConfigFrom(cfg.Images), a.store.KV, log.Named("images"))
	if err != nil {
		return nil, errors.Join(err, a.close(ctx))
	}

	a.identity = identity.NewService(a.client, a.tokens,
		auth.NewCredentialStore(a.store.KV, bcrypt.DefaultCost), a.store.KV, log.Named("identity"))
	a.cart = cartapp.NewService(a.store.KV, a.store.Products, a.store.Clients, log.Named("cart"))
	a.checkout = checkout.NewService(a.cart, a.store.PendingOrders, a.store.Clients, log.Named("checkout"))

	metrics, err := telemetry.NewSyncMetrics(providers.Meter())
	if err != nil {
		log.Warn("Sync metrics unavailable", zap.Error(err))
	}
	a.orch = syncapp.NewOrchestrator(syncapp.Deps{
		Gateway:       a.client,
		Connectivity:  a.prober,
		Products:      a.store.Products,
		Clients:       a.store.Clients,
		PendingOrders: a.store.PendingOrders,
		History:       a.store.OrderHistory,
		Checkpoints:   a.store.Checkpoints,
		Images:        a.images,
	}, log.Named("sync"),
		syncapp.WithMetrics(metrics),
		syncapp.WithHistoryLimit(cfg.Remote.HistoryLimit),
		syncapp.WithProgress(func(msg string) { fmt.Println("  " + msg) }),
	)
	return a, nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.telemetry.Shutdown(ctx))
	return errors.Join(errs...)
}
