package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/charts"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/prices"
	"github.com/aristath/tradesim/internal/modules/trading"
	"github.com/aristath/tradesim/internal/persistence"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/rs/zerolog"
)

// InitializeServices builds the market, portfolio, trading and persistence
// services on top of an initialized container.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Market
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load asset catalog: %w", err)
	}
	container.Catalog = cat

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	container.Seed = seed

	simCfg := simulation.Config{
		Interval:        cfg.Simulation.TickInterval,
		DT:              simulation.DefaultDT,
		HistoryCapacity: cfg.Simulation.HistoryCapacity,
	}
	// Prices and regime transitions draw from separate streams so regime
	// checks never shift the price path for a given seed.
	container.Scheduler = simulation.NewScheduler(cat, simCfg, simulation.NewRandomSource(seed), log)

	controller, err := market_regime.NewController(container.Scheduler, market_regime.Config{
		CheckInterval:     cfg.Regime.CheckInterval,
		ChangeProbability: cfg.Regime.ChangeProbability,
	}, simulation.NewRandomSource(seed+1), log)
	if err != nil {
		return fmt.Errorf("failed to create market regime controller: %w", err)
	}
	container.Controller = controller

	container.RegimePersistence = market_regime.NewRegimePersistence(container.StateDB.Conn(), log)
	controller.SetRecorder(container.RegimePersistence)
	controller.OnRegimeChange(func(change market_regime.RegimeChange) {
		container.EventManager.EmitTyped("market_regime", &events.RegimeChangedData{
			From:                 string(change.From),
			To:                   string(change.To),
			VIX:                  change.VIX,
			DriftMultiplier:      change.Adjustment.DriftMultiplier,
			VolatilityMultiplier: change.Adjustment.VolatilityMultiplier,
			Reason:               change.Reason,
		})
	})

	// Portfolio
	ledger, err := portfolio.NewLedger(portfolio.Config{
		StartingCash: cfg.Portfolio.StartingCash,
		FeeRate:      cfg.Portfolio.FeeRate,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create portfolio ledger: %w", err)
	}
	container.Ledger = ledger

	// Prices
	container.PriceBook = prices.NewBook(container.Scheduler.Snapshot())
	container.PriceFeed = prices.NewFeed(container.PriceBook, ledger, container.EventManager, log)

	// Trading
	container.TradeRepo = trading.NewTradeRepository(container.LedgerDB.Conn(), log)
	container.TradingService = trading.NewTradingService(ledger, container.PriceBook, container.TradeRepo, container.EventManager, log)
	container.ChartsService = charts.NewService(container.Scheduler, cat, simCfg.DT, log)

	// Persistence
	store, err := newStateStore(container, cfg)
	if err != nil {
		return err
	}
	codec, err := persistence.NewCodec(cfg.State.Codec)
	if err != nil {
		return err
	}
	container.StateStore = store
	container.PersistenceService = persistence.NewService(store, codec, controller, ledger, container.EventManager, log)

	log.Info().
		Uint64("seed", seed).
		Int("symbols", cat.Len()).
		Str("state_backend", store.Name()).
		Str("state_codec", codec.Name()).
		Msg("Services initialized")
	return nil
}

// RestoreState loads the saved state into the controller and ledger, or
// starts fresh, then refreshes the price book from the scheduler.
func RestoreState(ctx context.Context, container *Container) bool {
	restored := container.PersistenceService.Restore(ctx)
	container.PriceBook.Apply(container.Scheduler.Snapshot())
	container.Ledger.MarkToMarket(container.PriceBook.Prices())
	return restored
}

func newStateStore(container *Container, cfg *config.Config) (persistence.Store, error) {
	switch cfg.State.Backend {
	case persistence.BackendMemory:
		return persistence.NewMemoryStore(), nil
	case persistence.BackendFile:
		return persistence.NewFileStore(cfg.StateFilePath()), nil
	case persistence.BackendSQLite:
		return persistence.NewSQLiteStore(container.StateDB.Conn(), persistence.DefaultSnapshotKey, cfg.State.Codec), nil
	case persistence.BackendS3:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := persistence.NewS3Store(ctx, persistence.S3Config{
			Bucket:    cfg.State.S3.Bucket,
			Key:       cfg.State.S3.Key,
			Region:    cfg.State.S3.Region,
			Endpoint:  cfg.State.S3.Endpoint,
			AccessKey: cfg.State.S3.AccessKeyID,
			SecretKey: cfg.State.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 state store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
}
