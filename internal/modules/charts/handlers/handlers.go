// Package handlers provides HTTP handlers for price history and indicators.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/modules/charts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultSparklinePoints = 50

// Handler serves chart data for the simulated market
type Handler struct {
	service *charts.Service
	history domain.PriceHistoryProvider
	log     zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *charts.Service, history domain.PriceHistoryProvider, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		history: history,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// HandleGetHistory returns raw price samples and summary statistics
// GET /api/market/history/{symbol}?window=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	window, ok := h.intParam(w, r, "window", 0)
	if !ok {
		return
	}

	prices, err := h.history.GetPriceHistory(symbol, window)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	stats, err := h.service.Stats(symbol, window)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": catalog.NormalizeSymbol(symbol),
		"window": window,
		"prices": prices,
		"stats":  stats,
	})
}

// HandleGetIndicators returns SMA, EMA and RSI over the history window
// GET /api/market/indicators/{symbol}?window=N&period=14
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	window, ok := h.intParam(w, r, "window", 0)
	if !ok {
		return
	}
	period, ok := h.intParam(w, r, "period", charts.DefaultIndicatorPeriod)
	if !ok {
		return
	}
	if period < 2 {
		h.writeError(w, http.StatusBadRequest, "period must be at least 2")
		return
	}

	indicators, err := h.service.GetIndicators(symbol, window, period)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, indicators)
}

// HandleGetSparklines returns downsampled series for every symbol
// GET /api/market/sparklines?window=N&points=50
func (h *Handler) HandleGetSparklines(w http.ResponseWriter, r *http.Request) {
	window, ok := h.intParam(w, r, "window", 0)
	if !ok {
		return
	}
	points, ok := h.intParam(w, r, "points", defaultSparklinePoints)
	if !ok {
		return
	}
	if points == 0 {
		h.writeError(w, http.StatusBadRequest, "points must be positive")
		return
	}

	sparklines, err := h.service.GetSparklines(window, points)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build sparklines")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, sparklines)
}

func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		h.writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	var notFound *catalog.SymbolNotFoundError
	if errors.As(err, &notFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Failed to read price history")
	h.writeError(w, http.StatusInternalServerError, err.Error())
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
