package portfolio

import (
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/shopspring/decimal"
)

// Position is an open holding. Closed positions are removed, never kept at zero.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AverageCost  decimal.Decimal `json:"averageCost"`
	CurrentPrice float64         `json:"currentPrice"`
}

// Transaction is an immutable record of one executed trade.
// Total is the signed effect on cash: negative for BUY, positive for SELL.
type Transaction struct {
	ID        string           `json:"id"`
	Symbol    string           `json:"symbol"`
	Side      domain.Side      `json:"side"`
	OrderType domain.OrderType `json:"orderType"`
	Quantity  int64            `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Fee       decimal.Decimal  `json:"fee"`
	Total     decimal.Decimal  `json:"total"`
	Timestamp time.Time        `json:"timestamp"`
}

// TradeOrder is a fully resolved order: the execution price is already known.
type TradeOrder struct {
	Symbol    string
	Side      domain.Side
	OrderType domain.OrderType
	Quantity  int64
	Price     float64
}

// TradeResult reports the outcome of ExecuteTrade. Business-rule rejections
// set Success=false with a typed Err; they are not returned as Go errors.
type TradeResult struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Trade   *Transaction `json:"trade,omitempty"`
	Err     error        `json:"-"`
}

// Snapshot is a deep copy of the ledger, also used as its persisted form.
type Snapshot struct {
	Cash         decimal.Decimal `json:"cash"`
	StartingCash decimal.Decimal `json:"startingCash"`
	Positions    []Position      `json:"positions"`
	Transactions []Transaction   `json:"transactions"`
}

// Position returns the open position for symbol, if any.
func (s Snapshot) Position(symbol string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}
