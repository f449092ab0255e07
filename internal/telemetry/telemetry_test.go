package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/config"
)

func TestInitDisabled(t *testing.T) {
	t.Parallel()

	p, err := Init(config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.tp)
	assert.Nil(t, p.mp)
}

func TestShutdownNoop(t *testing.T) {
	t.Parallel()

	p, err := Init(config.TelemetryConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	var nilProviders *Providers
	assert.NoError(t, nilProviders.Shutdown(context.Background()))
}

func TestBuildVersionFallback(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, buildVersion())
}
