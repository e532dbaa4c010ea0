// Package sync coordinates the offline store with the remote server: order
// upload, catalog pull, image prefetch, client and order-history mirroring.
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/fieldsales/vendorsync/internal/infrastructure/connectivity"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/fieldsales/vendorsync/internal/infrastructure/imagecache"
	applog "github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/fieldsales/vendorsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is the number of confirmed orders requested per sync
const DefaultHistoryLimit = 50

// Gateway is the remote side of a sync
type Gateway interface {
	GetCatalog(ctx context.Context) (*gateway.CatalogResponse, error)
	GetChanges(ctx context.Context, since string) (*gateway.CatalogResponse, error)
	GetClients(ctx context.Context) (*gateway.ClientsResponse, error)
	GetOrderHistory(ctx context.Context, limit int) (*gateway.OrderHistoryResponse, error)
	GetStatus(ctx context.Context) (*gateway.StatusResponse, error)
	UploadOrders(ctx context.Context, orders []gateway.UploadOrder) (*gateway.UploadOrdersResponse, error)
}

// ImageCache prefetches product images
type ImageCache interface {
	PrefetchAll(ctx context.Context, urls []string, progress imagecache.ProgressFunc) imagecache.PrefetchResult
}

// Checkpoints stores the last catalog sync timestamp
type Checkpoints interface {
	Get(ctx context.Context) (string, bool, error)
	Advance(ctx context.Context, ts string) (bool, error)
}

// Deps are the collaborators of an Orchestrator. Images may be nil, in
// which case the image phase is skipped.
type Deps struct {
	Gateway       Gateway
	Connectivity  connectivity.Checker
	Products      catalog.ProductRepository
	Clients       partner.ClientRepository
	PendingOrders trade.PendingOrderRepository
	History       trade.OrderHistoryRepository
	Checkpoints   Checkpoints
	Images        ImageCache
}

// ProgressFunc receives human-readable progress messages
type ProgressFunc func(message string)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithMetrics records runs and phases on m
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithHistoryLimit sets how many confirmed orders are requested
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// Orchestrator runs sync phases against the local store. Only one run is
// active at a time; a run started while another is in flight returns
// immediately with ErrSyncInProgress.
type Orchestrator struct {
	deps         Deps
	progress     ProgressFunc
	metrics      *telemetry.SyncMetrics
	now          func() time.Time
	historyLimit int
	logger       *zap.Logger

	running atomic.Bool
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(deps Deps, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		deps:         deps,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a sync is in flight
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// SyncPendingOrders uploads unsynced orders
func (o *Orchestrator) SyncPendingOrders(ctx context.Context) *Result {
	return o.run(ctx, "orders", func(ctx context.Context, r *Result) {
		report := o.uploadPhase(ctx)
		r.add(report)
		o.finish(r, report.Success, report.Message, report.Err)
	})
}

// SyncCatalog pulls the catalog, full or incremental, and prefetches the
// images of the stored products
func (o *Orchestrator) SyncCatalog(ctx context.Context) *Result {
	return o.run(ctx, "catalog", func(ctx context.Context, r *Result) {
		report := o.catalogPhase(ctx)
		r.add(report)
		if report.Success {
			r.add(o.imagesPhase(ctx))
		}
		o.finish(r, report.Success, report.Message, report.Err)
	})
}

// SyncClients mirrors the vendor's assigned clients
func (o *Orchestrator) SyncClients(ctx context.Context) *Result {
	return o.run(ctx, "clients", func(ctx context.Context, r *Result) {
		report := o.clientsPhase(ctx)
		r.add(report)
		o.finish(r, report.Success, report.Message, report.Err)
	})
}

// SyncOrderHistory mirrors the server-confirmed orders
func (o *Orchestrator) SyncOrderHistory(ctx context.Context) *Result {
	return o.run(ctx, "history", func(ctx context.Context, r *Result) {
		report := o.historyPhase(ctx)
		r.add(report)
		o.finish(r, report.Success, report.Message, report.Err)
	})
}

// FullSync runs upload, catalog, images, clients and history in that
// order. The run succeeds when upload and catalog succeed; the other
// phases are reported but do not affect the outcome.
func (o *Orchestrator) FullSync(ctx context.Context) *Result {
	return o.run(ctx, "full", func(ctx context.Context, r *Result) {
		upload := o.uploadPhase(ctx)
		r.add(upload)

		cat := o.catalogPhase(ctx)
		r.add(cat)

		if cat.Success {
			r.add(o.imagesPhase(ctx))
		}
		r.add(o.clientsPhase(ctx))
		r.add(o.historyPhase(ctx))

		success := upload.Success && cat.Success
		message := MessageFullOK
		if !success {
			message = MessageFullErrors
		}
		err := upload.Err
		if err == nil {
			err = cat.Err
		}
		o.finish(r, success, message, err)
	})
}

func (o *Orchestrator) finish(r *Result, success bool, message string, err error) {
	r.Success = success
	r.Message = message
	r.Err = err
}

// run applies the single-flight guard and the connectivity check, then
// calls body with a fresh Result
func (o *Orchestrator) run(ctx context.Context, kind string, body func(context.Context, *Result)) *Result {
	startedAt := o.now()
	r := &Result{StartedAt: startedAt}
	trigger := TriggerFrom(ctx)

	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("Sync already in progress", zap.String("kind", kind), zap.String("trigger", trigger))
		r.Message = MessageInProgress
		r.Err = ErrSyncInProgress
		r.FinishedAt = o.now()
		o.metrics.RecordRun(ctx, trigger, telemetry.OutcomeSkipped, 0)
		return r
	}
	defer o.running.Store(false)

	runID := uuid.NewString()
	ctx, span := telemetry.StartRunSpan(ctx, kind, runID, trigger)
	defer span.End()
	ctx, log := applog.WithSyncRun(ctx, o.logger.With(zap.String("kind", kind), zap.String("trigger", trigger)), runID)

	o.report("Verificando conexión...")
	if o.deps.Connectivity != nil && !o.deps.Connectivity.IsConnected(ctx) {
		log.Info("Sync skipped, offline")
		r.Offline = true
		r.Message = MessageOffline
		r.Err = ErrOffline
		r.FinishedAt = o.now()
		telemetry.AddEvent(span, "offline")
		o.metrics.RecordRun(ctx, trigger, telemetry.OutcomeOffline, r.Duration())
		return r
	}

	log.Info("Sync started")
	body(ctx, r)
	r.FinishedAt = o.now()

	outcome := telemetry.OutcomeSuccess
	if !r.Success {
		outcome = telemetry.OutcomeFailure
		telemetry.RecordError(span, r.Err)
	} else {
		telemetry.SetOK(span)
	}
	o.metrics.RecordRun(ctx, trigger, outcome, r.Duration())
	o.recordBacklog(ctx)

	fields := []zap.Field{
		zap.Bool("success", r.Success),
		zap.String("message", r.Message),
		zap.Int("products", r.ProductsUpdated),
		zap.Int("orders", r.OrdersSynced),
		zap.Int("clients", r.ClientsSynced),
		zap.Int("history", r.HistorySynced),
		zap.Duration("duration", r.Duration()),
	}
	if r.Success {
		log.Info("Sync finished", fields...)
	} else {
		log.Warn("Sync finished with errors", append(fields, zap.Error(r.Err))...)
	}
	return r
}

// phase wraps one phase with a span, a metric and timing
func (o *Orchestrator) phase(ctx context.Context, p Phase, fn func(ctx context.Context, span trace.Span) PhaseReport) PhaseReport {
	ctx, span := telemetry.StartPhaseSpan(ctx, string(p))
	defer span.End()

	start := o.now()
	report := fn(ctx, span)
	report.Phase = p
	report.Duration = o.now().Sub(start)
	if report.Err != nil && report.Message == "" {
		report.Message = translate(report.Err)
	}

	outcome := telemetry.OutcomeSuccess
	if !report.Success {
		outcome = telemetry.OutcomeFailure
		telemetry.RecordError(span, report.Err)
		applog.FromContext(ctx).Warn("Sync phase failed",
			zap.String("phase", string(p)),
			zap.String("message", report.Message),
			zap.Error(report.Err),
		)
	}
	o.metrics.RecordPhase(ctx, string(p), outcome)
	return report
}

func (o *Orchestrator) report(message string) {
	if o.progress != nil {
		o.progress(message)
	}
}

func (o *Orchestrator) recordBacklog(ctx context.Context) {
	if o.metrics == nil || o.deps.PendingOrders == nil {
		return
	}
	n, err := o.deps.PendingOrders.CountUnsynced(ctx)
	if err != nil {
		o.logger.Debug("Failed to count pending orders", zap.Error(err))
		return
	}
	o.metrics.SetPendingOrders(ctx, n)
}

type triggerKey struct{}

// Trigger labels for runs
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// WithTrigger labels the runs started with ctx
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFrom returns the trigger label of ctx, TriggerManual by default
func TriggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}
