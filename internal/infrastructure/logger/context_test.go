package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func contextWithSpan(t *testing.T) (context.Context, trace.Span) {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test").Start(context.Background(), "op")
}

func TestWithContext(t *testing.T) {
	log, _ := newObservedLogger()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	log.Info("goes nowhere")
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), loggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestWithRequestID(t *testing.T) {
	log, recorded := newObservedLogger()

	ctx, enriched := WithRequestID(context.Background(), log, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Same(t, enriched, FromContext(ctx))

	enriched.Info("hello")
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "req-1", recorded.All()[0].ContextMap()["request_id"])
}

func TestWithRunID(t *testing.T) {
	log, recorded := newObservedLogger()

	ctx, enriched := WithRunID(context.Background(), log, "run-1")
	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Empty(t, GetRequestID(ctx))

	enriched.Info("generating")
	assert.Equal(t, "run-1", recorded.All()[0].ContextMap()["run_id"])
}

func TestGetIDs_NotFound(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetRunID(context.Background()))
}

func TestContextChaining(t *testing.T) {
	log, recorded := newObservedLogger()

	ctx, _ := WithRequestID(context.Background(), log, "req-2")
	ctx, _ = WithRunID(ctx, FromContext(ctx), "run-2")

	FromContext(ctx).Info("chained")
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-2", fields["request_id"])
	assert.Equal(t, "run-2", fields["run_id"])
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	log, _ := newObservedLogger()
	assert.Same(t, log, WithTraceContext(context.Background(), log))
}

func TestWithTraceContext_WithSpan(t *testing.T) {
	log, recorded := newObservedLogger()
	ctx, span := contextWithSpan(t)
	defer span.End()

	WithTraceContext(ctx, log).Info("traced")

	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestL(t *testing.T) {
	log, recorded := newObservedLogger()
	ctx, span := contextWithSpan(t)
	defer span.End()
	ctx, _ = WithRunID(ctx, log, "run-3")

	L(ctx).Info("exported")

	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "run-3", fields["run_id"])
	assert.Contains(t, fields, "trace_id")
}

func TestL_WithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		L(context.Background()).Info("dropped")
	})
}

func TestCorrelationFields(t *testing.T) {
	assert.Empty(t, correlationFields(context.Background()))

	ctx, span := contextWithSpan(t)
	defer span.End()
	ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-4")

	keys := make([]string, 0)
	for _, f := range correlationFields(ctx) {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"request_id", "trace_id"}, keys)
}
