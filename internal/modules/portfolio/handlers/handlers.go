// Package handlers provides HTTP handlers for the portfolio ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/valuation"
	"github.com/rs/zerolog"
)

const defaultMovers = 3

// Handler handles portfolio HTTP requests
type Handler struct {
	ledger       *portfolio.Ledger
	prices       domain.PriceProvider
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(ledger *portfolio.Ledger, prices domain.PriceProvider, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:       ledger,
		prices:       prices,
		eventManager: eventManager,
		log:          log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns the ledger snapshot
// GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}

// HandleGetValuation returns the portfolio valued at the latest prices
// GET /api/portfolio/valuation
func (h *Handler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	v := valuation.Calculate(h.ledger.Snapshot(), h.prices.Prices())

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valuation": v,
		"formatted": map[string]string{
			"totalValue":      valuation.FormatUSD(v.TotalValue),
			"cash":            valuation.FormatUSD(v.Cash),
			"gainLoss":        valuation.FormatSignedUSD(v.GainLoss),
			"gainLossPercent": valuation.FormatPercent(v.GainLossPercent),
		},
	})
}

// HandleGetMovers returns the top gainers and losers by P&L percent
// GET /api/portfolio/movers?n=3
func (h *Handler) HandleGetMovers(w http.ResponseWriter, r *http.Request) {
	n := defaultMovers
	if param := r.URL.Query().Get("n"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = parsed
	}

	h.writeJSON(w, http.StatusOK, valuation.TopMovers(h.ledger.Snapshot(), h.prices.Prices(), n))
}

// HandleGetTransactions returns the in-memory transaction log in execution order
// GET /api/portfolio/transactions
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.ledger.Transactions()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// HandleReset returns the ledger to its starting cash
// POST /api/portfolio/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.ledger.Reset()

	if h.eventManager != nil {
		h.eventManager.EmitTyped("portfolio", &events.PortfolioChangedData{
			Cash:   h.ledger.Cash().String(),
			Reason: "reset",
		})
	}

	h.writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
