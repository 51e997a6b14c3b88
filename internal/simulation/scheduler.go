package simulation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultHistoryCapacity keeps one 6.5h session of one-second samples per symbol.
const DefaultHistoryCapacity = 23400

// Quote is the per-symbol entry of a PriceUpdateBatch.
type Quote struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// PriceUpdateBatch holds every symbol's new price for one tick.
type PriceUpdateBatch map[string]Quote

// Prices flattens the batch into symbol -> price.
func (b PriceUpdateBatch) Prices() map[string]float64 {
	out := make(map[string]float64, len(b))
	for sym, q := range b {
		out[sym] = q.Price
	}
	return out
}

// UpdateFunc receives one batch per tick. It must not call Stop.
type UpdateFunc func(PriceUpdateBatch)

// Config controls tick cadence and history retention.
type Config struct {
	Interval        time.Duration // wall-clock time between ticks
	DT              float64       // simulated years per tick
	HistoryCapacity int           // samples retained per symbol
}

// DefaultConfig is one tick per second, each worth one trading second.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Second,
		DT:              DefaultDT,
		HistoryCapacity: DefaultHistoryCapacity,
	}
}

// SymbolState is the persisted form of one symbol's simulation.
type SymbolState struct {
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousPrice float64   `json:"previousPrice"`
	History       []float64 `json:"history"`
}

// State maps symbol to its persisted simulation state.
type State map[string]SymbolState

type symbolState struct {
	asset      catalog.Asset
	mu         float64
	sigma      float64
	configured bool
	current    float64
	previous   float64
	history    *priceRing
}

func (st *symbolState) resetToAsset() {
	st.mu = st.asset.BaseDrift
	st.sigma = st.asset.BaseVolatility
	st.configured = true
	st.current = st.asset.InitialPrice
	st.previous = st.asset.InitialPrice
	st.history.reset()
	st.history.push(st.asset.InitialPrice)
}

// Scheduler owns per-symbol GBM state and drives the periodic price tick.
type Scheduler struct {
	cfg     Config
	rng     RandomSource
	log     zerolog.Logger
	now     func() time.Time
	symbols []string

	// mu serialises ticks against parameter changes, save and load.
	mu        sync.Mutex
	states    map[string]*symbolState
	tickCount uint64

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler seeds one simulation per catalog asset.
// Zero config fields take their DefaultConfig values; a nil rng gets a time-seeded source.
func NewScheduler(cat *catalog.Catalog, cfg Config, rng RandomSource, log zerolog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.DT == 0 || math.IsNaN(cfg.DT) {
		cfg.DT = def.DT
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if rng == nil {
		rng = NewRandomSource(0)
	}

	s := &Scheduler{
		cfg:     cfg,
		rng:     rng,
		log:     log.With().Str("component", "price_scheduler").Logger(),
		now:     time.Now,
		symbols: cat.Symbols(),
		states:  make(map[string]*symbolState, cat.Len()),
	}
	for _, asset := range cat.All() {
		st := &symbolState{asset: asset, history: newPriceRing(cfg.HistoryCapacity)}
		st.resetToAsset()
		s.states[asset.Symbol] = st
	}
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Symbols returns every simulated symbol, sorted.
func (s *Scheduler) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Start begins ticking: once immediately, then every Interval.
// It returns false without side effects when already running.
func (s *Scheduler) Start(onUpdate UpdateFunc) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		s.log.Debug().Msg("Price simulation already running, ignoring start")
		return false
	}

	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop, onUpdate)

	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Int("symbols", len(s.symbols)).
		Msg("Price simulation started")
	return true
}

func (s *Scheduler) loop(stop <-chan struct{}, onUpdate UpdateFunc) {
	defer s.wg.Done()

	s.emit(onUpdate, s.Tick())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Both channels may be ready; stop wins.
			select {
			case <-stop:
				return
			default:
			}
			s.emit(onUpdate, s.Tick())
		}
	}
}

func (s *Scheduler) emit(onUpdate UpdateFunc, batch PriceUpdateBatch) {
	if onUpdate != nil {
		onUpdate(batch)
	}
}

// Stop halts ticking. A tick already in progress completes before Stop returns.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.runMu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("Price simulation stopped")
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// TickCount is the number of ticks executed since construction.
func (s *Scheduler) TickCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickCount
}

// Tick advances every symbol by one step and returns the whole batch.
// It panics if a symbol has no usable drift/volatility.
func (s *Scheduler) Tick() PriceUpdateBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	batch := make(PriceUpdateBatch, len(s.symbols))
	for _, sym := range s.symbols {
		st := s.states[sym]
		if !st.configured || math.IsNaN(st.mu) || math.IsNaN(st.sigma) {
			panic(fmt.Sprintf("simulation: drift/volatility unset for %s", sym))
		}

		next := NextPrice(s.rng, st.current, st.mu, st.sigma, s.cfg.DT)
		st.previous = st.current
		st.current = next
		st.history.push(next)

		batch[sym] = newQuote(st.current, st.previous, ts)
	}
	s.tickCount++
	return batch
}

func newQuote(current, previous float64, ts time.Time) Quote {
	change := current - previous
	pct := 0.0
	if previous > 0 {
		pct = change / previous * 100
	}
	return Quote{Price: current, Change: change, ChangePercent: pct, Timestamp: ts}
}

// Snapshot returns the latest quote of every symbol without advancing.
func (s *Scheduler) Snapshot() PriceUpdateBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	batch := make(PriceUpdateBatch, len(s.states))
	for sym, st := range s.states {
		batch[sym] = newQuote(st.current, st.previous, ts)
	}
	return batch
}

// Reset restores catalog prices and base parameters and re-seeds history
// with the initial price. Running state is untouched.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.states {
		st.resetToAsset()
	}
	s.log.Info().Msg("Price simulation reset")
}

// CurrentPrice returns the latest price of symbol.
func (s *Scheduler) CurrentPrice(symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.lookup(symbol)
	if err != nil {
		return 0, err
	}
	return st.current, nil
}

// PreviousPrice returns the price before the latest tick.
func (s *Scheduler) PreviousPrice(symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.lookup(symbol)
	if err != nil {
		return 0, err
	}
	return st.previous, nil
}

// AllCurrentPrices returns symbol -> latest price.
func (s *Scheduler) AllCurrentPrices() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(s.states))
	for sym, st := range s.states {
		out[sym] = st.current
	}
	return out
}

// GetPriceHistory returns the most recent window samples, oldest first.
// A window of zero or less returns the full retained history.
func (s *Scheduler) GetPriceHistory(symbol string, window int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.lookup(symbol)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		return st.history.all(), nil
	}
	return st.history.last(window), nil
}

// Parameters returns the active drift and volatility of symbol.
func (s *Scheduler) Parameters(symbol string) (mu, sigma float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.lookup(symbol)
	if err != nil {
		return 0, 0, err
	}
	return st.mu, st.sigma, nil
}

// UpdateParameters replaces drift and/or volatility of one symbol. Nil keeps the current value.
func (s *Scheduler) UpdateParameters(symbol string, mu, sigma *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.lookup(symbol)
	if err != nil {
		return err
	}
	newMu, newSigma := st.mu, st.sigma
	if mu != nil {
		newMu = *mu
	}
	if sigma != nil {
		newSigma = *sigma
	}
	if err := validateParameters(newMu, newSigma); err != nil {
		return fmt.Errorf("%s: %w", st.asset.Symbol, err)
	}
	st.mu, st.sigma = newMu, newSigma
	return nil
}

// ParameterFunc derives drift and volatility from an asset's base values.
type ParameterFunc func(asset catalog.Asset) (mu, sigma float64)

// SetAllParameters recomputes every symbol's parameters in one critical section,
// so no tick observes a partially adjusted market.
func (s *Scheduler) SetAllParameters(fn ParameterFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string][2]float64, len(s.states))
	for sym, st := range s.states {
		mu, sigma := fn(st.asset)
		if err := validateParameters(mu, sigma); err != nil {
			return fmt.Errorf("%s: %w", sym, err)
		}
		next[sym] = [2]float64{mu, sigma}
	}
	for sym, p := range next {
		st := s.states[sym]
		st.mu, st.sigma = p[0], p[1]
		st.configured = true
	}
	return nil
}

func validateParameters(mu, sigma float64) error {
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return fmt.Errorf("drift must be finite, got %v", mu)
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return fmt.Errorf("volatility must be finite and non-negative, got %v", sigma)
	}
	return nil
}

func (s *Scheduler) lookup(symbol string) (*symbolState, error) {
	st, ok := s.states[catalog.NormalizeSymbol(symbol)]
	if !ok {
		return nil, &catalog.SymbolNotFoundError{Symbol: symbol}
	}
	return st, nil
}

// Export copies current/previous prices and history of every symbol.
func (s *Scheduler) Export() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(State, len(s.states))
	for sym, st := range s.states {
		out[sym] = SymbolState{
			CurrentPrice:  st.current,
			PreviousPrice: st.previous,
			History:       st.history.all(),
		}
	}
	return out
}

// Import replaces prices and history from a previous Export.
// Unknown symbols are ignored; symbols absent from state keep their values.
// Any invalid entry rejects the whole state with a *domain.StateLoadError.
func (s *Scheduler) Import(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sym := range state.sortedSymbols() {
		entry := state[sym]
		if _, ok := s.states[sym]; !ok {
			continue
		}
		if !validPrice(entry.CurrentPrice) || !validPrice(entry.PreviousPrice) {
			return domain.NewStateLoadError(fmt.Sprintf("symbol %s has an invalid price", sym), nil)
		}
		for _, p := range entry.History {
			if !validPrice(p) {
				return domain.NewStateLoadError(fmt.Sprintf("symbol %s has an invalid history sample", sym), nil)
			}
		}
	}

	loaded := 0
	for sym, entry := range state {
		st, ok := s.states[sym]
		if !ok {
			s.log.Debug().Str("symbol", sym).Msg("Ignoring unknown symbol in saved state")
			continue
		}
		st.current = entry.CurrentPrice
		st.previous = entry.PreviousPrice
		st.history.reset()
		for _, p := range entry.History {
			st.history.push(p)
		}
		loaded++
	}
	s.log.Info().Int("symbols", loaded).Msg("Price simulation state loaded")
	return nil
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= MinPrice
}

// SaveState serialises Export as JSON.
func (s *Scheduler) SaveState() ([]byte, error) {
	data, err := json.Marshal(s.Export())
	if err != nil {
		return nil, fmt.Errorf("failed to encode simulation state: %w", err)
	}
	return data, nil
}

// LoadState restores a SaveState blob.
func (s *Scheduler) LoadState(blob []byte) error {
	var state State
	if err := json.Unmarshal(blob, &state); err != nil {
		return domain.NewStateLoadError("simulation state is not valid JSON", err)
	}
	return s.Import(state)
}

func (st State) sortedSymbols() []string {
	out := make([]string, 0, len(st))
	for sym := range st {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
