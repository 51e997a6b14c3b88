// Package portfolio holds the cash, positions and transaction log of the
// simulated account and enforces the accounting rules for trades.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// DefaultStartingCash is the baseline balance of a fresh ledger
	DefaultStartingCash = 100000
	// DefaultFeeRate is the proportional fee charged on every trade (0.1%)
	DefaultFeeRate = 0.001
	// MinTradePrice matches the price floor of the simulation
	MinTradePrice = 0.01
)

// Config holds ledger settings
type Config struct {
	StartingCash decimal.Decimal
	FeeRate      decimal.Decimal
}

// DefaultConfig returns $100,000 starting cash and a 0.1% fee
func DefaultConfig() Config {
	return Config{
		StartingCash: decimal.NewFromInt(DefaultStartingCash),
		FeeRate:      decimal.NewFromFloat(DefaultFeeRate),
	}
}

// Validate checks that the starting cash is not negative and the fee rate is in [0, 1)
func (c Config) Validate() error {
	if c.StartingCash.IsNegative() {
		return fmt.Errorf("starting cash must not be negative, got %s", c.StartingCash)
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee rate must be in [0, 1), got %s", c.FeeRate)
	}
	return nil
}

// Ledger is the single owner of portfolio state. All mutations happen under
// one write lock; readers receive deep copies.
type Ledger struct {
	mu           sync.RWMutex
	feeRate      decimal.Decimal
	startingCash decimal.Decimal
	cash         decimal.Decimal
	positions    map[string]*Position
	transactions []Transaction

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// NewLedger creates a ledger holding only the starting cash
func NewLedger(cfg Config, log zerolog.Logger) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		feeRate:      cfg.FeeRate,
		startingCash: cfg.StartingCash,
		cash:         cfg.StartingCash,
		positions:    make(map[string]*Position),
		transactions: make([]Transaction, 0),
		now:          time.Now,
		newID:        uuid.NewString,
		log:          log.With().Str("component", "ledger").Logger(),
	}, nil
}

// FeeRate returns the proportional fee
func (l *Ledger) FeeRate() decimal.Decimal {
	return l.feeRate
}

// Cash returns the current cash balance
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// StartingCash returns the gain/loss baseline
func (l *Ledger) StartingCash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startingCash
}

// GetPosition returns a copy of the open position for symbol
func (l *Ledger) GetPosition(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[strings.ToUpper(symbol)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Transactions returns a copy of the transaction log in execution order
func (l *Ledger) Transactions() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// ExecuteTrade validates and applies one order. On any rejection the ledger
// is left untouched and the result carries the typed error.
func (l *Ledger) ExecuteTrade(order TradeOrder) TradeResult {
	symbol := strings.ToUpper(strings.TrimSpace(order.Symbol))
	orderType := order.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeMarket
	}

	if err := validateOrder(symbol, order); err != nil {
		return l.reject(symbol, order, err)
	}

	price := decimal.NewFromFloat(order.Price)
	qty := decimal.NewFromInt(order.Quantity)
	notional := price.Mul(qty)
	fee := notional.Mul(l.feeRate)

	l.mu.Lock()
	defer l.mu.Unlock()

	var total decimal.Decimal
	switch order.Side {
	case domain.SideBuy:
		required := notional.Add(fee)
		if l.cash.LessThan(required) {
			return l.reject(symbol, order, &InsufficientFundsError{Required: required, Available: l.cash})
		}
		if pos, ok := l.positions[symbol]; ok && pos.Quantity > math.MaxInt64-order.Quantity {
			return l.reject(symbol, order, &ValidationError{
				Field:   "quantity",
				Message: fmt.Sprintf("would overflow the position size of %d", pos.Quantity),
			})
		}
		total = required.Neg()
		l.applyBuy(symbol, order.Quantity, price, order.Price)

	case domain.SideSell:
		pos, ok := l.positions[symbol]
		if !ok {
			return l.reject(symbol, order, &InsufficientSharesError{Symbol: symbol, Requested: order.Quantity, NoPosition: true})
		}
		if pos.Quantity < order.Quantity {
			return l.reject(symbol, order, &InsufficientSharesError{Symbol: symbol, Held: pos.Quantity, Requested: order.Quantity})
		}
		total = notional.Sub(fee)
		pos.Quantity -= order.Quantity
		if pos.Quantity == 0 {
			delete(l.positions, symbol)
		}
	}

	l.cash = l.cash.Add(total)
	tx := Transaction{
		ID:        l.newID(),
		Symbol:    symbol,
		Side:      order.Side,
		OrderType: orderType,
		Quantity:  order.Quantity,
		Price:     price,
		Fee:       fee,
		Total:     total,
		Timestamp: l.now(),
	}
	l.transactions = append(l.transactions, tx)

	l.log.Info().
		Str("trade_id", tx.ID).
		Str("symbol", symbol).
		Str("side", string(order.Side)).
		Int64("quantity", order.Quantity).
		Float64("price", order.Price).
		Str("fee", fee.String()).
		Str("cash", l.cash.String()).
		Msg("Trade executed")

	return TradeResult{Success: true, Trade: &tx}
}

func (l *Ledger) applyBuy(symbol string, quantity int64, price decimal.Decimal, rawPrice float64) {
	pos, ok := l.positions[symbol]
	if !ok {
		l.positions[symbol] = &Position{
			Symbol:       symbol,
			Quantity:     quantity,
			AverageCost:  price,
			CurrentPrice: rawPrice,
		}
		return
	}

	newQty := pos.Quantity + quantity
	cost := pos.AverageCost.Mul(decimal.NewFromInt(pos.Quantity)).Add(price.Mul(decimal.NewFromInt(quantity)))
	pos.AverageCost = cost.Div(decimal.NewFromInt(newQty))
	pos.Quantity = newQty
	pos.CurrentPrice = rawPrice
}

func (l *Ledger) reject(symbol string, order TradeOrder, err error) TradeResult {
	l.log.Debug().
		Str("symbol", symbol).
		Str("side", string(order.Side)).
		Int64("quantity", order.Quantity).
		Err(err).
		Msg("Trade rejected")
	return TradeResult{Success: false, Error: err.Error(), Err: err}
}

func validateOrder(symbol string, order TradeOrder) error {
	if symbol == "" {
		return &ValidationError{Field: "symbol", Message: "must not be empty"}
	}
	if order.Side != domain.SideBuy && order.Side != domain.SideSell {
		return &ValidationError{Field: "side", Message: fmt.Sprintf("must be BUY or SELL, got %q", order.Side)}
	}
	if order.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("must be a positive integer, got %d", order.Quantity)}
	}
	if math.IsNaN(order.Price) || math.IsInf(order.Price, 0) || order.Price < MinTradePrice {
		return &ValidationError{Field: "price", Message: fmt.Sprintf("must be at least %v, got %v", MinTradePrice, order.Price)}
	}
	return nil
}

// MarkToMarket sets CurrentPrice on every held position present in prices.
// Non-positive quotes are ignored.
func (l *Ledger) MarkToMarket(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for symbol, pos := range l.positions {
		if p, ok := prices[symbol]; ok && p > 0 {
			pos.CurrentPrice = p
		}
	}
}

// Snapshot returns a deep copy of the ledger with positions sorted by symbol
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	transactions := make([]Transaction, len(l.transactions))
	copy(transactions, l.transactions)

	return Snapshot{
		Cash:         l.cash,
		StartingCash: l.startingCash,
		Positions:    positions,
		Transactions: transactions,
	}
}

// Validate checks that snap can be restored: non-negative cash, unique open
// positions with positive quantity and cost, and well-formed transactions.
// Failures are *domain.StateLoadError.
func (s Snapshot) Validate() error {
	_, err := s.positionIndex()
	return err
}

func (s Snapshot) positionIndex() (map[string]*Position, error) {
	if s.Cash.IsNegative() {
		return nil, domain.NewStateLoadError(fmt.Sprintf("negative cash %s", s.Cash), nil)
	}
	if s.StartingCash.IsNegative() {
		return nil, domain.NewStateLoadError(fmt.Sprintf("negative starting cash %s", s.StartingCash), nil)
	}

	positions := make(map[string]*Position, len(s.Positions))
	for _, p := range s.Positions {
		symbol := strings.ToUpper(p.Symbol)
		if symbol == "" {
			return nil, domain.NewStateLoadError("position without symbol", nil)
		}
		if _, dup := positions[symbol]; dup {
			return nil, domain.NewStateLoadError(fmt.Sprintf("duplicate position %s", symbol), nil)
		}
		if p.Quantity <= 0 {
			return nil, domain.NewStateLoadError(fmt.Sprintf("position %s has quantity %d", symbol, p.Quantity), nil)
		}
		if !p.AverageCost.IsPositive() {
			return nil, domain.NewStateLoadError(fmt.Sprintf("position %s has average cost %s", symbol, p.AverageCost), nil)
		}
		pos := p
		pos.Symbol = symbol
		positions[symbol] = &pos
	}

	for i, tx := range s.Transactions {
		if tx.Side != domain.SideBuy && tx.Side != domain.SideSell {
			return nil, domain.NewStateLoadError(fmt.Sprintf("transaction %d has side %q", i, tx.Side), nil)
		}
		if tx.Quantity <= 0 {
			return nil, domain.NewStateLoadError(fmt.Sprintf("transaction %d has quantity %d", i, tx.Quantity), nil)
		}
	}
	return positions, nil
}

// Restore replaces the ledger contents with snap. Nothing is replaced unless
// snap passes Validate.
func (l *Ledger) Restore(snap Snapshot) error {
	positions, err := snap.positionIndex()
	if err != nil {
		return err
	}

	transactions := make([]Transaction, len(snap.Transactions))
	copy(transactions, snap.Transactions)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = snap.Cash
	l.startingCash = snap.StartingCash
	l.positions = positions
	l.transactions = transactions

	l.log.Info().
		Str("cash", l.cash.String()).
		Int("positions", len(positions)).
		Int("transactions", len(transactions)).
		Msg("Ledger restored")
	return nil
}

// Reset returns the ledger to its starting cash with no positions or history
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = l.startingCash
	l.positions = make(map[string]*Position)
	l.transactions = make([]Transaction, 0)
	l.log.Info().Str("cash", l.cash.String()).Msg("Ledger reset")
}
