package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	Tick    uint64             `json:"tick"`
	Symbols int                `json:"symbols"`
	Prices  map[string]float64 `json:"prices"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// RegimeChangedData contains data for RegimeChanged events
type RegimeChangedData struct {
	From                 string  `json:"from"`
	To                   string  `json:"to"`
	VIX                  float64 `json:"vix"`
	DriftMultiplier      float64 `json:"drift_multiplier"`
	VolatilityMultiplier float64 `json:"volatility_multiplier"`
	Reason               string  `json:"reason"`
}

// EventType returns the event type for RegimeChangedData
func (d *RegimeChangedData) EventType() EventType {
	return RegimeChanged
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	TradeID   string  `json:"trade_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"order_type"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Fee       string  `json:"fee"`
	Total     string  `json:"total"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// TradeRejectedData contains data for TradeRejected events
type TradeRejectedData struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// EventType returns the event type for TradeRejectedData
func (d *TradeRejectedData) EventType() EventType {
	return TradeRejected
}

// PortfolioChangedData contains data for PortfolioChanged events
type PortfolioChangedData struct {
	Cash      string `json:"cash"`
	Positions int    `json:"positions"`
	Reason    string `json:"reason"`
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// SimulationStateChangedData contains data for SimulationStateChanged events
type SimulationStateChangedData struct {
	Action  string `json:"action"` // start, stop, reset, load
	Running bool   `json:"running"`
}

// EventType returns the event type for SimulationStateChangedData
func (d *SimulationStateChangedData) EventType() EventType {
	return SimulationStateChanged
}

// StateSavedData contains data for StateSaved events
type StateSavedData struct {
	Backend string `json:"backend"`
	Bytes   int    `json:"bytes"`
}

// EventType returns the event type for StateSavedData
func (d *StateSavedData) EventType() EventType {
	return StateSaved
}

// StateLoadFailedData contains data for StateLoadFailed events
type StateLoadFailedData struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

// EventType returns the event type for StateLoadFailedData
func (d *StateLoadFailedData) EventType() EventType {
	return StateLoadFailed
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
