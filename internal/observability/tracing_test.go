package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "ctfarena-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_BadExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{ServiceName: "x", Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown exporter")

	_, err = InitTracing(context.Background(), TracingConfig{ServiceName: "x", Enabled: true, Exporter: "otlp"})
	assert.ErrorContains(t, err, "endpoint")
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestRecordErrorInContext_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordErrorInContext(context.Background(), assert.AnError)
		RecordErrorInContext(context.Background(), nil)
	})
}
