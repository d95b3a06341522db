package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEnabledTelemetryShutsDown(t *testing.T) {
	// Экспортер подключается лениво, поэтому коллектор не нужен
	shutdown, err := InitTelemetry(context.Background(), Config{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
