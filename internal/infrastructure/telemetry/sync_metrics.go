package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor receives no meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Outcome labels for sync runs and phases
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeOffline = "offline"
	OutcomeSkipped = "skipped"
)

// Metric attribute keys
var (
	AttrPhase   = attribute.Key("phase")
	AttrOutcome = attribute.Key("outcome")
	AttrTrigger = attribute.Key("trigger")
)

// SyncDurationBuckets are bucket boundaries for sync run duration (seconds)
var SyncDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// SyncMetrics records what each sync run moved and how long it took
type SyncMetrics struct {
	runs               metric.Int64Counter
	phases             metric.Int64Counter
	productsUpserted   metric.Int64Counter
	ordersAcknowledged metric.Int64Counter
	clientsUpserted    metric.Int64Counter
	imagesCached       metric.Int64Counter
	duration           metric.Float64Histogram
	pendingOrders      metric.Int64Gauge
}

// NewSyncMetrics registers the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var err error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, cerr := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if cerr != nil {
			err = errors.Join(err, fmt.Errorf("counter %s: %w", name, cerr))
		}
		return c
	}
	m := &SyncMetrics{
		runs:               counter("vendorsync_runs_total", "Sync runs by trigger and outcome", "{runs}"),
		phases:             counter("vendorsync_phases_total", "Sync phases by outcome", "{phases}"),
		productsUpserted:   counter("vendorsync_products_upserted_total", "Products written by catalog sync", "{products}"),
		ordersAcknowledged: counter("vendorsync_orders_acknowledged_total", "Pending orders flipped to synced", "{orders}"),
		clientsUpserted:    counter("vendorsync_clients_upserted_total", "Clients written by client sync", "{clients}"),
		imagesCached:       counter("vendorsync_images_total", "Image prefetch attempts by outcome", "{images}"),
	}

	var herr, gerr error
	m.duration, herr = meter.Float64Histogram("vendorsync_run_duration_seconds",
		metric.WithDescription("Wall time of a sync run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(SyncDurationBuckets...),
	)
	m.pendingOrders, gerr = meter.Int64Gauge("vendorsync_pending_orders",
		metric.WithDescription("Orders awaiting upload after the last run"),
		metric.WithUnit("{orders}"),
	)
	if err = errors.Join(err, herr, gerr); err != nil {
		return nil, fmt.Errorf("telemetry: register sync metrics: %w", err)
	}
	return m, nil
}

// RecordRun counts one finished run and its duration
func (m *SyncMetrics) RecordRun(ctx context.Context, trigger, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(AttrTrigger.String(trigger), AttrOutcome.String(outcome)))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrTrigger.String(trigger)))
}

// RecordPhase counts one finished phase
func (m *SyncMetrics) RecordPhase(ctx context.Context, phase, outcome string) {
	if m == nil {
		return
	}
	m.phases.Add(ctx, 1, metric.WithAttributes(AttrPhase.String(phase), AttrOutcome.String(outcome)))
}

// AddProducts counts products written by catalog sync
func (m *SyncMetrics) AddProducts(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.productsUpserted.Add(ctx, int64(n))
}

// AddOrders counts pending orders acknowledged by the server
func (m *SyncMetrics) AddOrders(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ordersAcknowledged.Add(ctx, int64(n))
}

// AddClients counts clients written by client sync
func (m *SyncMetrics) AddClients(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.clientsUpserted.Add(ctx, int64(n))
}

// AddImages counts image prefetch results
func (m *SyncMetrics) AddImages(ctx context.Context, success, failed int) {
	if m == nil {
		return
	}
	if success > 0 {
		m.imagesCached.Add(ctx, int64(success), metric.WithAttributes(AttrOutcome.String(OutcomeSuccess)))
	}
	if failed > 0 {
		m.imagesCached.Add(ctx, int64(failed), metric.WithAttributes(AttrOutcome.String(OutcomeFailure)))
	}
}

// SetPendingOrders records the unsynced order backlog
func (m *SyncMetrics) SetPendingOrders(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.pendingOrders.Record(ctx, n)
}
