// Package trading turns trade requests into ledger operations: it resolves
// the execution price, applies the order and records the audit trail.
package trading

import (
	"fmt"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// TradeRecorder persists executed trades
type TradeRecorder interface {
	Create(tx portfolio.Transaction) error
	GetHistory(limit int) ([]portfolio.Transaction, error)
}

var _ TradeRecorder = (*TradeRepository)(nil)

// TradeRequest is an order as submitted by a caller. LimitPrice is required
// for LIMIT orders and ignored for MARKET orders.
type TradeRequest struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Quantity   int64    `json:"quantity"`
	OrderType  string   `json:"orderType,omitempty"`
	LimitPrice *float64 `json:"limitPrice,omitempty"`
}

// TradingService executes trades against the ledger.
//
// MARKET orders fill at the latest simulated price; LIMIT orders fill at the
// caller-supplied price. Successful trades are written to the audit
// repository and announced as TRADE_EXECUTED; rejections as TRADE_REJECTED.
type TradingService struct {
	ledger       *portfolio.Ledger
	prices       domain.PriceProvider
	tradeRepo    TradeRecorder
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewTradingService creates a new trading service. tradeRepo and eventManager may be nil.
func NewTradingService(
	ledger *portfolio.Ledger,
	prices domain.PriceProvider,
	tradeRepo TradeRecorder,
	eventManager *events.Manager,
	log zerolog.Logger,
) *TradingService {
	return &TradingService{
		ledger:       ledger,
		prices:       prices,
		tradeRepo:    tradeRepo,
		eventManager: eventManager,
		log:          log.With().Str("service", "trading").Logger(),
	}
}

// ExecuteTrade resolves req to a priced order and applies it. Every failure,
// including an unknown symbol, is reported in the result rather than as an error.
func (s *TradingService) ExecuteTrade(req TradeRequest) portfolio.TradeResult {
	order, err := s.resolve(req)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", req.Symbol).Msg("Trade request rejected")
		s.emitRejected(req.Symbol, req.Side, req.Quantity, err)
		return portfolio.TradeResult{Success: false, Error: err.Error(), Err: err}
	}

	result := s.ledger.ExecuteTrade(order)
	if !result.Success {
		s.emitRejected(order.Symbol, string(order.Side), order.Quantity, result.Err)
		return result
	}

	tx := *result.Trade
	if s.tradeRepo != nil {
		if err := s.tradeRepo.Create(tx); err != nil {
			// The ledger is authoritative; a failed audit write does not undo the trade.
			s.log.Error().Err(err).Str("trade_id", tx.ID).Msg("Failed to record trade")
		}
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped("trading", &events.TradeExecutedData{
			TradeID:   tx.ID,
			Symbol:    tx.Symbol,
			Side:      string(tx.Side),
			OrderType: string(tx.OrderType),
			Quantity:  tx.Quantity,
			Price:     tx.Price.InexactFloat64(),
			Fee:       tx.Fee.String(),
			Total:     tx.Total.String(),
		})
		snap := s.ledger.Snapshot()
		s.eventManager.EmitTyped("trading", &events.PortfolioChangedData{
			Cash:      snap.Cash.String(),
			Positions: len(snap.Positions),
			Reason:    "trade",
		})
	}
	return result
}

func (s *TradingService) resolve(req TradeRequest) (portfolio.TradeOrder, error) {
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return portfolio.TradeOrder{}, &portfolio.ValidationError{Field: "side", Message: fmt.Sprintf("must be BUY or SELL, got %q", req.Side)}
	}
	orderType, err := domain.ParseOrderType(req.OrderType)
	if err != nil {
		return portfolio.TradeOrder{}, &portfolio.ValidationError{Field: "orderType", Message: fmt.Sprintf("must be MARKET or LIMIT, got %q", req.OrderType)}
	}
	if req.Quantity <= 0 {
		return portfolio.TradeOrder{}, &portfolio.ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("must be a positive integer, got %d", req.Quantity),
		}
	}

	marketPrice, err := s.prices.Price(req.Symbol)
	if err != nil {
		return portfolio.TradeOrder{}, err
	}

	price := marketPrice
	if orderType == domain.OrderTypeLimit {
		if req.LimitPrice == nil {
			return portfolio.TradeOrder{}, &portfolio.ValidationError{Field: "limitPrice", Message: "is required for LIMIT orders"}
		}
		price = *req.LimitPrice
	}

	return portfolio.TradeOrder{
		Symbol:    req.Symbol,
		Side:      side,
		OrderType: orderType,
		Quantity:  req.Quantity,
		Price:     price,
	}, nil
}

func (s *TradingService) emitRejected(symbol, side string, quantity int64, err error) {
	if s.eventManager == nil {
		return
	}
	s.eventManager.EmitTyped("trading", &events.TradeRejectedData{
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Reason:   err.Error(),
	})
}

// GetHistory returns up to limit recorded trades, most recent first.
// Without a repository the in-memory transaction log is used.
func (s *TradingService) GetHistory(limit int) ([]portfolio.Transaction, error) {
	if s.tradeRepo != nil {
		return s.tradeRepo.GetHistory(limit)
	}

	txs := s.ledger.Transactions()
	out := make([]portfolio.Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, txs[i])
	}
	return out, nil
}
