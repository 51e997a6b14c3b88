// Package handlers provides HTTP handlers for trade execution and history.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/trading"
	"github.com/aristath/tradesim/internal/modules/valuation"
	"github.com/rs/zerolog"
)

const defaultHistoryLimit = 50

// TradingHandlers handles trading HTTP requests
type TradingHandlers struct {
	service *trading.TradingService
	catalog *catalog.Catalog
	log     zerolog.Logger
}

// NewTradingHandlers creates new trading handlers
func NewTradingHandlers(service *trading.TradingService, cat *catalog.Catalog, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		service: service,
		catalog: cat,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandleExecuteTrade executes one trade request
// POST /api/trades
func (h *TradingHandlers) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req trading.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := h.service.ExecuteTrade(req)
	if !result.Success {
		h.writeJSON(w, statusForError(result.Err), result)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// tradeView is a transaction with display fields for the UI
type tradeView struct {
	portfolio.Transaction
	Name           string `json:"name"`
	FormattedTotal string `json:"formattedTotal"`
}

// HandleGetHistory returns recorded trades, most recent first
// GET /api/trades/history?limit=N
func (h *TradingHandlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	trades, err := h.service.GetHistory(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get trade history")
		h.writeError(w, http.StatusInternalServerError, "Failed to get trade history")
		return
	}

	views := make([]tradeView, 0, len(trades))
	for _, tx := range trades {
		name := tx.Symbol
		if h.catalog != nil {
			if asset, err := h.catalog.Get(tx.Symbol); err == nil {
				name = asset.Name
			}
		}
		views = append(views, tradeView{
			Transaction:    tx,
			Name:           name,
			FormattedTotal: valuation.FormatSignedUSD(tx.Total),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": views,
		"count":  len(views),
	})
}

// statusForError maps a trade rejection to an HTTP status
func statusForError(err error) int {
	var validationErr *portfolio.ValidationError
	var notFound *catalog.SymbolNotFoundError
	var fundsErr *portfolio.InsufficientFundsError
	var sharesErr *portfolio.InsufficientSharesError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &fundsErr), errors.As(err, &sharesErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *TradingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
