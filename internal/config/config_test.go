package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("TRADESIM_DATA_DIR", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := setDataDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, time.Second, cfg.Simulation.TickInterval)
	assert.Equal(t, 23400, cfg.Simulation.HistoryCapacity)
	assert.Equal(t, uint64(0), cfg.Simulation.Seed)
	assert.True(t, cfg.Simulation.Autostart)
	assert.Equal(t, time.Minute, cfg.Regime.CheckInterval)
	assert.Equal(t, 0.05, cfg.Regime.ChangeProbability)
	assert.True(t, cfg.Portfolio.StartingCash.Equal(decimal.NewFromInt(100000)))
	assert.True(t, cfg.Portfolio.FeeRate.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "json", cfg.State.Codec)
	assert.Equal(t, "@every 30s", cfg.Jobs.AutosaveSchedule)
	assert.Equal(t, 30, cfg.Jobs.RegimeHistoryRetention)
	assert.Equal(t, filepath.Join(dir, "state.json"), cfg.StateFilePath())
}

func TestLoad_Overrides(t *testing.T) {
	setDataDir(t)
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("SIM_TICK_INTERVAL", "250ms")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("SIM_AUTOSTART", "false")
	t.Setenv("REGIME_CHANGE_PROBABILITY", "0.5")
	t.Setenv("PORTFOLIO_STARTING_CASH", "2500.50")
	t.Setenv("STATE_BACKEND", "FILE")
	t.Setenv("STATE_CODEC", "msgpack")
	t.Setenv("STATE_AUTOSAVE_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.TickInterval)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.False(t, cfg.Simulation.Autostart)
	assert.Equal(t, 0.5, cfg.Regime.ChangeProbability)
	assert.True(t, cfg.Portfolio.StartingCash.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, "msgpack", cfg.State.Codec)
	assert.Empty(t, cfg.Jobs.AutosaveSchedule, "an explicitly empty schedule disables autosave")
}

func TestLoad_UnparseableValuesFallBack(t *testing.T) {
	setDataDir(t)
	t.Setenv("GO_PORT", "eighty")
	t.Setenv("SIM_TICK_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, time.Second, cfg.Simulation.TickInterval)
}

func TestLoad_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{"zero tick", "SIM_TICK_INTERVAL", "0s"},
		{"negative check interval", "REGIME_CHECK_INTERVAL", "-1m"},
		{"probability above one", "REGIME_CHANGE_PROBABILITY", "1.5"},
		{"zero capacity", "SIM_HISTORY_CAPACITY", "0"},
		{"negative cash", "PORTFOLIO_STARTING_CASH", "-1"},
		{"fee of one", "PORTFOLIO_FEE_RATE", "1"},
		{"unknown backend", "STATE_BACKEND", "redis"},
		{"unknown codec", "STATE_CODEC", "yaml"},
		{"s3 without bucket", "STATE_BACKEND", "s3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setDataDir(t)
			t.Setenv(tc.key, tc.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_S3Backend(t *testing.T) {
	setDataDir(t)
	t.Setenv("STATE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "sim-state")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sim-state", cfg.State.S3.Bucket)
	assert.Equal(t, "tradesim/state", cfg.State.S3.Key)
	assert.Equal(t, "http://localhost:9000", cfg.State.S3.Endpoint)
}
