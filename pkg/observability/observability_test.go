package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTraceRecordsOutcome(t *testing.T) {
	recorder := installRecorder(t)

	err := Trace(context.Background(), "close", func(ctx context.Context, span *Span) error {
		span.SetAttribute("rows", int64(3))
		span.SetAttribute("row_keys", true)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Trace(context.Background(), "open", func(ctx context.Context, span *Span) error {
		return boom
	})
	assert.Equal(t, boom, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "coltable.close", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "coltable.open", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)

	var found bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "rows" {
			found = true
			assert.Equal(t, int64(3), kv.Value.AsInt64())
		}
	}
	assert.True(t, found)
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(TracingConfig{Exporter: "jaeger"})
	assert.Error(t, err)

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var out bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Exporter = "stdout"
	cfg.Output = &out
	shutdown, err = InitTracing(cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "save")
	span.End(nil)
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "coltable.save")
}

func TestOperationLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	installRecorder(t)

	ctx, span := StartSpan(context.Background(), "import")
	ol := NewOperationLogger(ctx, zap.New(core), "import")
	ol.LogStart("import started")
	for _, p := range []float64{0.01, 0.05, 0.12, 0.13, 0.5, 1} {
		ol.LogProgress("import progress", p)
	}
	ol.LogComplete("import finished")
	ol.LogError("import failed", errors.New("x"))
	span.End(nil)

	progress := logs.FilterMessage("import progress").All()
	// 0.0, 0.1, 0.5, 1.0
	assert.Len(t, progress, 4)

	entries := logs.All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, "import", fields["operation"])
	assert.NotEmpty(t, fields["trace_id"])
	assert.Equal(t, 1, logs.FilterMessage("import failed").Len())
}
