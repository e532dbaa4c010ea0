package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	syncRunIDKey contextKey = "sync_run_id"
	vendorIDKey  contextKey = "vendor_id"
)

// WithContext returns a new context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithSyncRun tags ctx with a sync run. The returned logger, also stored in
// the context, carries the run ID and, when ctx holds a valid span, the
// trace ID.
func WithSyncRun(ctx context.Context, base *zap.Logger, runID string) (context.Context, *zap.Logger) {
	enriched := base.With(zap.String("sync_run_id", runID))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		enriched = enriched.With(zap.String("trace_id", sc.TraceID().String()))
	}
	ctx = context.WithValue(ctx, syncRunIDKey, runID)
	return WithContext(ctx, enriched), enriched
}

// GetSyncRunID returns the sync run ID stored in ctx
func GetSyncRunID(ctx context.Context) string {
	id, _ := ctx.Value(syncRunIDKey).(string)
	return id
}

// WithVendor tags ctx with the authenticated vendor
func WithVendor(ctx context.Context, base *zap.Logger, vendorID string) (context.Context, *zap.Logger) {
	enriched := base.With(zap.String("vendor_id", vendorID))
	ctx = context.WithValue(ctx, vendorIDKey, vendorID)
	return WithContext(ctx, enriched), enriched
}

// GetVendorID returns the vendor ID stored in ctx
func GetVendorID(ctx context.Context) string {
	id, _ := ctx.Value(vendorIDKey).(string)
	return id
}
