package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer and meter used by the sync engine
const TracerName = "vendorsync"

// Span attribute keys
const (
	SpanAttrPhase      = "sync.phase"
	SpanAttrRunID      = "sync.run_id"
	SpanAttrTrigger    = "sync.trigger"
	SpanAttrProcedure  = "rpc.procedure"
	SpanAttrIncrement  = "sync.incremental"
	SpanAttrProducts   = "sync.products"
	SpanAttrOrders     = "sync.orders"
	SpanAttrClients    = "sync.clients"
	SpanAttrHTTPStatus = "http.status_code"
)

// SpanOption configures a span at start
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
}

// WithAttribute adds an attribute to the span
func WithAttribute(key string, value any) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, toAttribute(key, value))
	}
}

// WithSpanKind sets the span kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(opts *spanOptions) {
		opts.kind = kind
	}
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	o := &spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(o)
	}
	startOpts := []trace.SpanStartOption{trace.WithSpanKind(o.kind)}
	if len(o.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(o.attributes...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, startOpts...)
}

// StartRunSpan starts the root span of a sync run, named "sync.<kind>"
func StartRunSpan(ctx context.Context, kind, runID, trigger string) (context.Context, trace.Span) {
	return StartSpan(ctx, "sync."+kind,
		WithAttribute(SpanAttrRunID, runID),
		WithAttribute(SpanAttrTrigger, trigger),
	)
}

// StartPhaseSpan starts the span of one sync phase, named "sync.phase.<phase>"
func StartPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return StartSpan(ctx, "sync.phase."+phase, WithAttribute(SpanAttrPhase, phase))
}

// StartRPCSpan starts a client span for one remote procedure, named
// "gateway.<procedure>"
func StartRPCSpan(ctx context.Context, procedure string) (context.Context, trace.Span) {
	return StartSpan(ctx, "gateway."+procedure,
		WithSpanKind(trace.SpanKindClient),
		WithAttribute(SpanAttrProcedure, procedure),
	)
}

// SetAttribute adds a single attribute to the span
func SetAttribute(span trace.Span, key string, value any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records err on the span and marks it failed. A nil err is
// ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event with key/value attributes. Non-string keys and a
// dangling key are dropped.
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
