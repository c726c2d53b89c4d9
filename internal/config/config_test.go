package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wardsim.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[simulation]
nurses = 5
walking_speed = 10
tick_rate = "250ms"

[path_cache]
backend = "sqlite"
`))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Simulation.Nurses)
	assert.Equal(t, 2, cfg.Simulation.Doctors, "default kept")
	assert.Equal(t, 10, cfg.Simulation.WalkingSpeed)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.TickRate)
	assert.Equal(t, "sqlite", cfg.PathCache.Backend)
	assert.Equal(t, 5, cfg.Grid.MaxDenominator)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"no nurses":   "[simulation]\nnurses = 0\n",
		"bad backend": "[path_cache]\nbackend = \"pickle\"\n",
		"occupancy":   "[simulation]\noccupancy = 150\n",
		"syntax":      "[simulation\n",
	} {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
