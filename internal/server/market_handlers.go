package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/prices"
)

const defaultRegimeHistoryLimit = 50

// RegimeHistoryReader reads recorded regime transitions
type RegimeHistoryReader interface {
	GetRegimeHistory(limit int) ([]market_regime.RegimeHistoryEntry, error)
}

// MarketHandlers serves the catalog, quotes and market regime controls
type MarketHandlers struct {
	catalog    *catalog.Catalog
	book       *prices.Book
	controller *market_regime.Controller
	history    RegimeHistoryReader
	log        zerolog.Logger
}

// NewMarketHandlers creates market handlers. history may be nil.
func NewMarketHandlers(
	cat *catalog.Catalog,
	book *prices.Book,
	controller *market_regime.Controller,
	history RegimeHistoryReader,
	log zerolog.Logger,
) *MarketHandlers {
	return &MarketHandlers{
		catalog:    cat,
		book:       book,
		controller: controller,
		history:    history,
		log:        log.With().Str("handler", "market").Logger(),
	}
}

// HandleGetCatalog lists every tradable asset
// GET /api/catalog
func (h *MarketHandlers) HandleGetCatalog(w http.ResponseWriter, r *http.Request) {
	assets := h.catalog.All()
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}

// HandleGetPrices returns the latest quote for every symbol
// GET /api/market/prices
func (h *MarketHandlers) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	quotes := h.book.Latest()
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"quotes": quotes,
		"count":  len(quotes),
	})
}

// HandleGetQuote returns the latest quote for one symbol
// GET /api/market/prices/{symbol}
func (h *MarketHandlers) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := catalog.NormalizeSymbol(chi.URLParam(r, "symbol"))
	quote, err := h.book.Quote(symbol)
	if err != nil {
		writeError(h.log, w, statusForError(err), err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"quote":  quote,
	})
}

// HandleGetState returns regime, VIX and session status
// GET /api/market/state
func (h *MarketHandlers) HandleGetState(w http.ResponseWriter, r *http.Request) {
	state := h.controller.State()
	adj := h.controller.Config().Policy[state.Regime]
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"state":                 state,
		"drift_multiplier":      adj.DriftMultiplier,
		"volatility_multiplier": adj.VolatilityMultiplier,
		"running":               h.controller.IsRunning(),
	})
}

type setRegimeRequest struct {
	Regime string `json:"regime"`
}

// HandleSetRegime forces a regime transition
// POST /api/market/regime
func (h *MarketHandlers) HandleSetRegime(w http.ResponseWriter, r *http.Request) {
	var req setRegimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	regime, err := domain.ParseRegime(req.Regime)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	change, err := h.controller.ForceRegime(regime)
	if err != nil {
		h.log.Error().Err(err).Str("regime", string(regime)).Msg("Failed to force regime")
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"changed": change != nil,
		"state":   h.controller.State(),
	})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// HandleSetStatus changes the reported session status
// POST /api/market/status
func (h *MarketHandlers) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := domain.ParseMarketStatus(req.Status)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.controller.SetStatus(status); err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"state": h.controller.State()})
}

// HandleGetRegimeHistory returns recorded transitions, newest first
// GET /api/market/regime/history?limit=N
func (h *MarketHandlers) HandleGetRegimeHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"entries": []market_regime.RegimeHistoryEntry{}, "count": 0})
		return
	}

	limit := defaultRegimeHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(h.log, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.history.GetRegimeHistory(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read regime history")
		writeError(h.log, w, http.StatusInternalServerError, "Failed to read regime history")
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
