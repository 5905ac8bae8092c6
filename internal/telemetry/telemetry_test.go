package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	// Noop provider should have nil TracerProvider and MeterProvider
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	// Shutdown should not error
	err = provider.Shutdown(ctx)
	assert.NoError(t, err)
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	err := provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestTracer_ReturnsGlobalTracer(t *testing.T) {
	tracer := telemetry.Tracer("test-tracer")
	assert.NotNil(t, tracer)
}

func TestMeter_ReturnsGlobalMeter(t *testing.T) {
	meter := telemetry.Meter("test-meter")
	assert.NotNil(t, meter)
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{name: "unset samples everything", ratio: 0, want: "AlwaysOnSampler"},
		{name: "negative samples everything", ratio: -0.5, want: "AlwaysOnSampler"},
		{name: "one samples everything", ratio: 1, want: "AlwaysOnSampler"},
		{name: "above one samples everything", ratio: 2, want: "AlwaysOnSampler"},
		{name: "fraction is parent based", ratio: 0.25, want: "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := telemetry.Config{SampleRatio: tt.ratio}
			assert.Contains(t, cfg.Sampler().Description(), tt.want)
		})
	}
}

func TestConfig_ExportInterval(t *testing.T) {
	assert.Equal(t, telemetry.DefaultMetricInterval, telemetry.Config{}.ExportInterval())
	assert.Equal(t, 15*time.Second, telemetry.Config{MetricInterval: -time.Second}.ExportInterval())
	assert.Equal(t, 5*time.Second, telemetry.Config{MetricInterval: 5 * time.Second}.ExportInterval())
}
