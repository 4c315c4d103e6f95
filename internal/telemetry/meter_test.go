package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMeterProvider(t *testing.T) {
	t.Parallel()

	t.Run("nil config returns no-op provider", func(t *testing.T) {
		t.Parallel()

		mp, err := NewMeterProvider(context.Background(), nil)
		require.NoError(t, err)
		assert.IsType(t, noop.NewMeterProvider(), mp)
	})

	t.Run("disabled config returns no-op provider", func(t *testing.T) {
		t.Parallel()

		mp, err := NewMeterProvider(context.Background(), &Config{Enabled: false})
		require.NoError(t, err)
		assert.IsType(t, noop.NewMeterProvider(), mp)
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())

	cfg = &Config{ServiceName: "svc", ServiceVersion: "1.2.3", Endpoint: "otel:4318"}
	assert.Equal(t, "svc", cfg.GetServiceName())
	assert.Equal(t, "1.2.3", cfg.GetServiceVersion())
	assert.Equal(t, "otel:4318", cfg.GetEndpoint())
}
