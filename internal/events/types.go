// Package events provides in-process event publication for the simulator.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Market data
	PriceUpdated  EventType = "PRICE_UPDATED"
	RegimeChanged EventType = "REGIME_CHANGED"

	// Trading
	TradeExecuted    EventType = "TRADE_EXECUTED"
	TradeRejected    EventType = "TRADE_REJECTED"
	PortfolioChanged EventType = "PORTFOLIO_CHANGED"

	// Lifecycle and persistence
	SimulationStateChanged EventType = "SIMULATION_STATE_CHANGED"
	StateSaved             EventType = "STATE_SAVED"
	StateLoadFailed        EventType = "STATE_LOAD_FAILED"
	ErrorOccurred          EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type that streams subscribe to by default
var AllTypes = []EventType{
	PriceUpdated,
	RegimeChanged,
	TradeExecuted,
	TradeRejected,
	PortfolioChanged,
	SimulationStateChanged,
	StateSaved,
	StateLoadFailed,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
