package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withRecorder swaps in an in-memory span recorder for the duration of
// one test and returns it.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestTraceWorkflowExecutionRecordsSpan(t *testing.T) {
	recorder := withRecorder(t)

	err := TraceWorkflowExecution(context.Background(), "wf1", "exec1", func(context.Context) error {
		return nil
	})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "workflow.run", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestTraceNodeExecutionMarksErrors(t *testing.T) {
	recorder := withRecorder(t)

	boom := errors.New("boom")
	_, err := TraceNodeExecution(context.Background(), "n1", "HttpRequest", func(context.Context) (interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "workflow.node", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events(), "the error should be recorded as a span event")
}

func TestTraceSubWorkflowNestsUnderParent(t *testing.T) {
	recorder := withRecorder(t)

	err := TraceWorkflowExecution(context.Background(), "outer", "e1", func(ctx context.Context) error {
		return TraceSubWorkflow(ctx, "outer.yaml", "child.yaml", 1, func(context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	child, parent := spans[0], spans[1]
	assert.Equal(t, "workflow.child", child.Name())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}

func TestInitTracingDisabledIsInert(t *testing.T) {
	p, shutdown, err := InitTracing(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.ForceFlush(context.Background()))
	shutdown()
}

func TestInitTracingRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty service", Config{Enabled: true, Exporter: ExporterNone}},
		{"unknown exporter", Config{Enabled: true, ServiceName: "s", Exporter: "carrier-pigeon"}},
		{"otlp without endpoint", Config{Enabled: true, ServiceName: "s", Exporter: ExporterOTLP}},
		{"sample out of range", Config{Enabled: true, ServiceName: "s", Exporter: ExporterNone, SampleRatio: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := InitTracing(context.Background(), &tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestInitTracingWithDiscardExporter(t *testing.T) {
	cfg := &Config{
		Enabled:     true,
		ServiceName: "flowgraph-test",
		Exporter:    ExporterNone,
		SampleRatio: 1.0,
	}
	p, shutdown, err := InitTracing(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown()

	err = TraceWorkflowExecution(context.Background(), "wf", "e", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, p.ForceFlush(context.Background()))
}

func TestLoadTracingConfigDefaults(t *testing.T) {
	cfg := LoadTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "flowgraph", cfg.ServiceName)
	assert.Equal(t, ExporterOTLP, cfg.Exporter)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestLoadTracingConfigEnvOverrides(t *testing.T) {
	t.Setenv("FLOWGRAPH_TRACING_ENABLED", "true")
	t.Setenv("FLOWGRAPH_TRACING_EXPORTER", "stdout")
	t.Setenv("FLOWGRAPH_TRACING_SAMPLE", "0.25")
	t.Setenv("FLOWGRAPH_TRACING_HEADERS", "x-team=flow, x-auth=abc")

	cfg := LoadTracingConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ExporterStdout, cfg.Exporter)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.Equal(t, map[string]string{"x-team": "flow", "x-auth": "abc"}, cfg.Headers)
}

func TestParsePairsDropsMalformedEntries(t *testing.T) {
	got := parsePairs("a=1,,broken,=nokey, b = 2 ")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
