package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldsales/vendorsync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sync.catalog",
		telemetry.WithAttribute(telemetry.SpanAttrIncrement, true),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.catalog", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.True(t, attrMap(spans[0].Attributes())[telemetry.SpanAttrIncrement].AsBool())
}

func TestRunPhaseAndRPCSpans_Nest(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, run := telemetry.StartRunSpan(context.Background(), "full", "run-1", "auto")
	ctx, phase := telemetry.StartPhaseSpan(ctx, "catalog")
	_, rpc := telemetry.StartRPCSpan(ctx, "sync.getChanges")
	rpc.End()
	phase.End()
	run.End()

	spans := sr.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "gateway.sync.getChanges", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, "sync.getChanges", attrMap(spans[0].Attributes())[telemetry.SpanAttrProcedure].AsString())

	assert.Equal(t, "sync.phase.catalog", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	assert.Equal(t, "sync.full", spans[2].Name())
	runAttrs := attrMap(spans[2].Attributes())
	assert.Equal(t, "run-1", runAttrs[telemetry.SpanAttrRunID].AsString())
	assert.Equal(t, "auto", runAttrs[telemetry.SpanAttrTrigger].AsString())
	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartPhaseSpan(context.Background(), "catalog")
	telemetry.RecordError(span, errors.New("HTTP 500"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "HTTP 500", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
}

func TestAddEventAndSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartPhaseSpan(context.Background(), "images")
	telemetry.AddEvent(span, "image_failed", "url", "https://cdn.example.com/a.jpg", 42, "ignored", "dangling")
	telemetry.SetOK(span)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Ok, ended.Status().Code)
	require.Len(t, ended.Events(), 1)
	assert.Equal(t, "image_failed", ended.Events()[0].Name)
	assert.Len(t, ended.Events()[0].Attributes, 1)
}

func TestHelpersTolerateNilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}
