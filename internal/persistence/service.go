package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/rs/zerolog"
)

// StateVersion is written into every saved document
const StateVersion = 1

// State is the document persisted by Service
type State struct {
	Version    int                       `json:"version"`
	SavedAt    time.Time                 `json:"savedAt"`
	Simulation simulation.State          `json:"simulation"`
	Market     market_regime.MarketState `json:"market"`
	Portfolio  portfolio.Snapshot        `json:"portfolio"`
}

// Service saves and restores simulation, market and portfolio state as one document
type Service struct {
	mu           sync.Mutex
	store        Store
	codec        Codec
	controller   *market_regime.Controller
	ledger       *portfolio.Ledger
	eventManager *events.Manager
	log          zerolog.Logger
	now          func() time.Time
	lastSaved    time.Time
}

// NewService creates a persistence service. eventManager may be nil.
func NewService(
	store Store,
	codec Codec,
	controller *market_regime.Controller,
	ledger *portfolio.Ledger,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:        store,
		codec:        codec,
		controller:   controller,
		ledger:       ledger,
		eventManager: eventManager,
		log:          log.With().Str("service", "persistence").Str("backend", store.Name()).Logger(),
		now:          time.Now,
	}
}

// Backend returns the configured store name
func (s *Service) Backend() string {
	return s.store.Name()
}

// LastSaved returns the time of the last successful save, zero if none
func (s *Service) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Capture returns the current state document without saving it
func (s *Service) Capture() State {
	snap := s.controller.Export()
	return State{
		Version:    StateVersion,
		SavedAt:    s.now().UTC(),
		Simulation: snap.Simulation,
		Market:     snap.Market,
		Portfolio:  s.ledger.Snapshot(),
	}
}

// Save encodes the current state and writes it to the store
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.Capture()
	blob, err := s.codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.store.Save(ctx, blob); err != nil {
		return err
	}
	s.lastSaved = state.SavedAt

	s.log.Debug().Int("bytes", len(blob)).Str("codec", s.codec.Name()).Msg("State saved")
	if s.eventManager != nil {
		s.eventManager.EmitTyped("persistence", &events.StateSavedData{
			Backend: s.store.Name(),
			Bytes:   len(blob),
		})
	}
	return nil
}

// Load reads the stored document and applies it. It returns ErrNoState when
// nothing was saved and *domain.StateLoadError when the document is unusable;
// in both cases the running state is left untouched.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	var state State
	if err := s.codec.Unmarshal(blob, &state); err != nil {
		return domain.NewStateLoadError(fmt.Sprintf("document is not valid %s", s.codec.Name()), err)
	}
	if state.Version != StateVersion {
		return domain.NewStateLoadError(fmt.Sprintf("unsupported state version %d", state.Version), nil)
	}
	if err := state.Portfolio.Validate(); err != nil {
		return err
	}

	if err := s.controller.Import(market_regime.Snapshot{
		Simulation: state.Simulation,
		Market:     state.Market,
	}); err != nil {
		return err
	}
	if err := s.ledger.Restore(state.Portfolio); err != nil {
		return err
	}

	s.lastSaved = state.SavedAt
	s.log.Info().
		Time("saved_at", state.SavedAt).
		Int("symbols", len(state.Simulation)).
		Str("regime", string(state.Market.Regime)).
		Msg("State loaded")
	return nil
}

// Restore loads saved state at startup. When nothing is stored or the stored
// document is unusable, the controller and ledger are reset to defaults and
// false is returned.
func (s *Service) Restore(ctx context.Context) bool {
	err := s.Load(ctx)
	if err == nil {
		return true
	}

	if errors.Is(err, ErrNoState) {
		s.log.Info().Msg("No saved state, starting fresh")
	} else {
		s.log.Warn().Err(err).Msg("Failed to load saved state, starting fresh")
		if s.eventManager != nil {
			s.eventManager.EmitTyped("persistence", &events.StateLoadFailedData{
				Backend: s.store.Name(),
				Reason:  err.Error(),
			})
		}
	}

	if resetErr := s.controller.Reset(); resetErr != nil {
		s.log.Error().Err(resetErr).Msg("Failed to reset market state")
	}
	s.ledger.Reset()
	return false
}
