package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/prices"
)

// StateKeeper saves and loads the combined simulator state
type StateKeeper interface {
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Backend() string
	LastSaved() time.Time
}

// SimulationHandlers controls the tick loop and state persistence
type SimulationHandlers struct {
	controller   *market_regime.Controller
	feed         *prices.Feed
	marker       prices.Marker
	state        StateKeeper
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewSimulationHandlers creates simulation handlers. eventManager may be nil.
func NewSimulationHandlers(
	controller *market_regime.Controller,
	feed *prices.Feed,
	marker prices.Marker,
	state StateKeeper,
	eventManager *events.Manager,
	log zerolog.Logger,
) *SimulationHandlers {
	return &SimulationHandlers{
		controller:   controller,
		feed:         feed,
		marker:       marker,
		state:        state,
		eventManager: eventManager,
		log:          log.With().Str("handler", "simulation").Logger(),
	}
}

// HandleStatus reports whether ticks are being produced
// GET /api/simulation
func (h *SimulationHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, http.StatusOK, h.status())
}

// HandleStart starts the tick loop. Starting a running simulation is a no-op.
// POST /api/simulation/start
func (h *SimulationHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if h.controller.Start(h.feed.OnUpdate) {
		h.log.Info().Msg("Simulation started")
		h.emit("start")
	}
	writeJSON(h.log, w, http.StatusOK, h.status())
}

// HandleStop stops the tick loop
// POST /api/simulation/stop
func (h *SimulationHandlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	wasRunning := h.controller.IsRunning()
	h.controller.Stop()
	if wasRunning {
		h.log.Info().Msg("Simulation stopped")
		h.emit("stop")
	}
	writeJSON(h.log, w, http.StatusOK, h.status())
}

// HandleReset restores catalog prices and the default market. The portfolio
// is left alone; it has its own reset endpoint.
// POST /api/simulation/reset
func (h *SimulationHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Reset(); err != nil {
		h.log.Error().Err(err).Msg("Failed to reset simulation")
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	h.refreshPrices()
	h.emit("reset")
	writeJSON(h.log, w, http.StatusOK, h.status())
}

// HandleSave writes the current state to the configured backend
// POST /api/simulation/save
func (h *SimulationHandlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Save(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to save state")
		writeError(h.log, w, statusForError(err), err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, h.status())
}

// HandleLoad replaces the live state with the saved one. A missing or
// corrupt snapshot leaves the running state untouched.
// POST /api/simulation/load
func (h *SimulationHandlers) HandleLoad(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Load(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to load state")
		writeError(h.log, w, statusForError(err), err.Error())
		return
	}
	h.refreshPrices()
	h.emit("load")
	writeJSON(h.log, w, http.StatusOK, h.status())
}

func (h *SimulationHandlers) refreshPrices() {
	h.feed.Book().Apply(h.controller.Scheduler().Snapshot())
	if h.marker != nil {
		h.marker.MarkToMarket(h.feed.Book().Prices())
	}
}

func (h *SimulationHandlers) emit(action string) {
	if h.eventManager == nil {
		return
	}
	h.eventManager.EmitTyped("simulation", &events.SimulationStateChangedData{
		Action:  action,
		Running: h.controller.IsRunning(),
	})
}

func (h *SimulationHandlers) status() map[string]interface{} {
	status := map[string]interface{}{
		"running": h.controller.IsRunning(),
		"ticks":   h.controller.Scheduler().TickCount(),
		"market":  h.controller.State(),
		"backend": h.state.Backend(),
	}
	if saved := h.state.LastSaved(); !saved.IsZero() {
		status["last_saved"] = saved.Format(time.RFC3339)
	}
	return status
}
