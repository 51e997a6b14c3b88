package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/modules/trading"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:  t.TempDir(),
		LogLevel: "info",
		Port:     8001,
		Simulation: config.SimulationConfig{
			TickInterval:    10 * time.Millisecond,
			HistoryCapacity: 100,
			Seed:            42,
		},
		Regime: config.RegimeConfig{
			CheckInterval:     time.Hour,
			ChangeProbability: 0.05,
		},
		Portfolio: config.PortfolioConfig{
			StartingCash: decimal.NewFromInt(100000),
			FeeRate:      decimal.RequireFromString("0.001"),
		},
		State: config.StateConfig{Backend: backend, Codec: "json"},
		Jobs: config.JobsConfig{
			AutosaveSchedule:       "@every 30s",
			RegimeCleanupSchedule:  "@daily",
			DatabaseCheckSchedule:  "@hourly",
			RegimeHistoryRetention: 30,
		},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t, "sqlite")

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.StateDB)
	assert.NotNil(t, container.Controller)
	assert.NotNil(t, container.TradingService)
	assert.NotNil(t, container.PersistenceService)
	assert.Equal(t, uint64(42), container.Seed)
	assert.Equal(t, "sqlite", container.StateStore.Name())
	assert.Equal(t, container.Catalog.Len(), container.PriceBook.Len())

	require.NotNil(t, jobs)
	assert.NotNil(t, jobs.Autosave)
	assert.NotNil(t, jobs.RegimeCleanup)
	assert.NotNil(t, jobs.CheckDBs)
	assert.Equal(t, 3, container.JobScheduler.JobCount())

	assert.FileExists(t, filepath.Join(cfg.DataDir, "ledger.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "state.db"))
}

func TestWire_StateBackends(t *testing.T) {
	for _, backend := range []string{"memory", "file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			container, _, err := Wire(testConfig(t, backend), zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(container.Close)
			assert.Equal(t, backend, container.StateStore.Name())
		})
	}
}

func TestWire_EmptySchedulesDisableJobs(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Jobs = config.JobsConfig{}

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)
	assert.Equal(t, 0, container.JobScheduler.JobCount())
}

func TestWire_TradeIsAuditedAndPersisted(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)

	result := container.TradingService.ExecuteTrade(trading.TradeRequest{Symbol: "AAPL", Side: "BUY", Quantity: 3})
	require.True(t, result.Success, result.Error)

	history, err := container.TradeRepo.GetHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, result.Trade.ID, history[0].ID)

	_, err = container.Controller.ForceRegime(domain.RegimeBear)
	require.NoError(t, err)
	require.NoError(t, container.PersistenceService.Save(ctx))
	container.Close()

	restarted, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(restarted.Close)

	assert.True(t, RestoreState(ctx, restarted))
	assert.Equal(t, domain.RegimeBear, restarted.Controller.State().Regime)
	pos, ok := restarted.Ledger.GetPosition("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(3), pos.Quantity)
	assert.Positive(t, pos.CurrentPrice)

	entries, err := restarted.RegimePersistence.GetRegimeHistory(10)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRestoreState_FreshStart(t *testing.T) {
	container, _, err := Wire(testConfig(t, "memory"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.False(t, RestoreState(context.Background(), container))
	assert.Equal(t, domain.RegimeSideways, container.Controller.State().Regime)
	assert.True(t, container.Ledger.Cash().Equal(decimal.NewFromInt(100000)))
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg := &config.Config{DataDir: filepath.Join(blocker, "data")}

	_, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
}
