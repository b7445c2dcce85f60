package appconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNothingSet(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "kwiver", cfg.KwiverBinary)
	assert.Equal(t, 5*time.Second, cfg.ProgressPollFreq)
	assert.False(t, cfg.Debug)
}

func TestLoad_EnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("BATCHRUN_KWIVER_BINARY", "/opt/viame/bin/kwiver")
	t.Setenv("BATCHRUN_DEBUG", "true")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/viame/bin/kwiver", cfg.KwiverBinary)
	assert.True(t, cfg.Debug)
}
