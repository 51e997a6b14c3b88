// Package di provides dependency injection type definitions.
//
// Container holds every long-lived component of the simulator. It is built
// by Wire and handed to the HTTP server and the command entry points.
package di

import (
	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/database"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/charts"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/prices"
	"github.com/aristath/tradesim/internal/modules/trading"
	"github.com/aristath/tradesim/internal/persistence"
	"github.com/aristath/tradesim/internal/scheduler"
	"github.com/aristath/tradesim/internal/simulation"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	LedgerDB *database.DB // trade audit trail
	StateDB  *database.DB // state snapshots and regime history

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Market
	Catalog           *catalog.Catalog
	Scheduler         *simulation.Scheduler
	Controller        *market_regime.Controller
	RegimePersistence *market_regime.RegimePersistence
	PriceBook         *prices.Book
	PriceFeed         *prices.Feed
	Seed              uint64

	// Portfolio and trading
	Ledger         *portfolio.Ledger
	TradeRepo      *trading.TradeRepository
	TradingService *trading.TradingService
	ChartsService  *charts.Service

	// Persistence
	StateStore         persistence.Store
	PersistenceService *persistence.Service

	// Background jobs
	JobScheduler *scheduler.Scheduler
}

// JobInstances holds job references for manual triggering via API
type JobInstances struct {
	Autosave      *scheduler.AutosaveJob
	RegimeCleanup *scheduler.RegimeHistoryCleanupJob
	CheckDBs      *scheduler.CheckDatabasesJob
}

// Close stops background work and closes the databases
func (c *Container) Close() {
	if c.JobScheduler != nil {
		c.JobScheduler.Stop()
	}
	if c.Controller != nil {
		c.Controller.Stop()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
	if c.StateDB != nil {
		c.StateDB.Close()
	}
}
