package market_regime

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/rs/zerolog"
)

// Transition reasons
const (
	ReasonRandom = "random"
	ReasonForced = "forced"
)

// MarketState is the controller's externally visible state.
type MarketState struct {
	Regime           domain.Regime       `json:"regime"`
	VIX              float64             `json:"vix"`
	Status           domain.MarketStatus `json:"status"`
	LastRegimeChange time.Time           `json:"lastRegimeChange"`
}

// RegimeChange describes one applied transition.
type RegimeChange struct {
	From       domain.Regime
	To         domain.Regime
	VIX        float64
	Adjustment Adjustment
	At         time.Time
	Reason     string
}

// RegimeRecorder persists transitions.
type RegimeRecorder interface {
	RecordTransition(change RegimeChange) error
}

// ChangeListener is notified after every applied transition.
type ChangeListener func(change RegimeChange)

// Config controls the regime check cadence and the adjustment table.
type Config struct {
	CheckInterval     time.Duration
	ChangeProbability float64
	Policy            Policy
}

// DefaultConfig checks once a minute with a 5% chance of switching.
func DefaultConfig() Config {
	return Config{
		CheckInterval:     time.Minute,
		ChangeProbability: 0.05,
		Policy:            DefaultPolicy(),
	}
}

// Snapshot is the combined persisted state of prices and market.
type Snapshot struct {
	Simulation simulation.State `json:"simulation"`
	Market     MarketState      `json:"market"`
}

// Controller wraps a price scheduler with a regime state machine and VIX.
type Controller struct {
	sched     *simulation.Scheduler
	cfg       Config
	rng       simulation.RandomSource
	now       func() time.Time
	log       zerolog.Logger
	recorder  RegimeRecorder
	listeners []ChangeListener

	// mu guards state and rng; it is taken before the scheduler's lock, never after.
	mu    sync.Mutex
	state MarketState

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewController takes ownership of sched and applies the sideways policy to it.
// rng must not be shared with the scheduler; nil gets a time-seeded source.
func NewController(sched *simulation.Scheduler, cfg Config, rng simulation.RandomSource, log zerolog.Logger) (*Controller, error) {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.Policy == nil {
		cfg.Policy = def.Policy
	}
	if math.IsNaN(cfg.ChangeProbability) || cfg.ChangeProbability < 0 || cfg.ChangeProbability > 1 {
		return nil, fmt.Errorf("regime change probability must be within [0, 1], got %v", cfg.ChangeProbability)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid regime policy: %w", err)
	}
	if rng == nil {
		rng = simulation.NewRandomSource(0)
	}

	c := &Controller{
		sched: sched,
		cfg:   cfg,
		rng:   rng,
		now:   time.Now,
		log:   log.With().Str("component", "market_regime").Logger(),
	}
	if err := c.resetLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetRecorder attaches regime history persistence. Call before Start.
func (c *Controller) SetRecorder(r RegimeRecorder) {
	c.recorder = r
}

// OnRegimeChange registers a listener. Call before Start.
func (c *Controller) OnRegimeChange(l ChangeListener) {
	c.listeners = append(c.listeners, l)
}

// Scheduler returns the wrapped price scheduler.
func (c *Controller) Scheduler() *simulation.Scheduler {
	return c.sched
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Start runs the price tick (with a VIX step per tick) and the regime check loop.
// It returns false when already running.
func (c *Controller) Start(onUpdate simulation.UpdateFunc) bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		c.log.Debug().Msg("Market regime controller already running, ignoring start")
		return false
	}

	started := c.sched.Start(func(batch simulation.PriceUpdateBatch) {
		c.stepVIX()
		if onUpdate != nil {
			onUpdate(batch)
		}
	})
	if !started {
		c.log.Warn().Msg("Price scheduler was started outside the controller; VIX will not track ticks")
	}

	c.running = true
	c.stop = make(chan struct{})
	c.wg.Add(1)
	go c.loop(c.stop)

	c.log.Info().
		Dur("check_interval", c.cfg.CheckInterval).
		Float64("change_probability", c.cfg.ChangeProbability).
		Msg("Market regime controller started")
	return true
}

func (c *Controller) loop(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			c.CheckRegime()
		}
	}
}

// Stop halts the regime loop and the price tick. In-flight work completes first.
func (c *Controller) Stop() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.runMu.Unlock()

	c.wg.Wait()
	c.sched.Stop()
	c.log.Info().Msg("Market regime controller stopped")
}

// IsRunning reports whether the controller loops are active.
func (c *Controller) IsRunning() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

// Tick advances prices and VIX once, outside the periodic loop.
func (c *Controller) Tick() simulation.PriceUpdateBatch {
	batch := c.sched.Tick()
	c.stepVIX()
	return batch
}

func (c *Controller) stepVIX() {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.cfg.Policy[c.state.Regime].VIXTarget
	c.state.VIX = NextVIX(c.state.VIX, target, c.rng)
}

// CheckRegime runs one regime check: with the configured probability the regime
// moves to one of the two other regimes, chosen uniformly. It returns the applied
// change, or nil when the regime stays.
func (c *Controller) CheckRegime() *RegimeChange {
	c.mu.Lock()
	if c.rng.Float64() >= c.cfg.ChangeProbability {
		c.mu.Unlock()
		return nil
	}

	others := c.state.Regime.Others()
	idx := int(c.rng.Float64() * float64(len(others)))
	if idx >= len(others) {
		idx = len(others) - 1
	}
	change, err := c.transitionLocked(others[idx], ReasonRandom)
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("Failed to apply regime transition")
		return nil
	}
	c.publish(change)
	return &change
}

// ForceRegime switches to r immediately. Switching to the current regime is a no-op
// and returns nil.
func (c *Controller) ForceRegime(r domain.Regime) (*RegimeChange, error) {
	if _, err := domain.ParseRegime(string(r)); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state.Regime == r {
		c.mu.Unlock()
		return nil, nil
	}
	change, err := c.transitionLocked(r, ReasonForced)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	c.publish(change)
	return &change, nil
}

func (c *Controller) transitionLocked(to domain.Regime, reason string) (RegimeChange, error) {
	if err := c.sched.SetAllParameters(c.cfg.Policy.ParametersFor(to)); err != nil {
		return RegimeChange{}, fmt.Errorf("failed to apply %s policy: %w", to, err)
	}

	from := c.state.Regime
	at := c.now()
	c.state.Regime = to
	c.state.LastRegimeChange = at

	return RegimeChange{
		From:       from,
		To:         to,
		VIX:        c.state.VIX,
		Adjustment: c.cfg.Policy[to],
		At:         at,
		Reason:     reason,
	}, nil
}

func (c *Controller) publish(change RegimeChange) {
	c.log.Info().
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Float64("drift_multiplier", change.Adjustment.DriftMultiplier).
		Float64("volatility_multiplier", change.Adjustment.VolatilityMultiplier).
		Str("reason", change.Reason).
		Msg("Market regime changed")

	if c.recorder != nil {
		if err := c.recorder.RecordTransition(change); err != nil {
			c.log.Warn().Err(err).Msg("Failed to record regime transition")
		}
	}
	for _, l := range c.listeners {
		l(change)
	}
}

// State returns a copy of the market state.
func (c *Controller) State() MarketState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetStatus changes the reported session status.
func (c *Controller) SetStatus(status domain.MarketStatus) error {
	if _, err := domain.ParseMarketStatus(string(status)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = status
	return nil
}

// Reset restores catalog prices, sideways regime, default VIX and open status.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resetLocked(); err != nil {
		return err
	}
	c.log.Info().Msg("Market reset to defaults")
	return nil
}

func (c *Controller) resetLocked() error {
	c.sched.Reset()
	c.state = MarketState{
		Regime:           domain.RegimeSideways,
		VIX:              DefaultVIX,
		Status:           domain.MarketStatusOpen,
		LastRegimeChange: c.now(),
	}
	if err := c.sched.SetAllParameters(c.cfg.Policy.ParametersFor(domain.RegimeSideways)); err != nil {
		return fmt.Errorf("failed to apply sideways policy: %w", err)
	}
	return nil
}

// Export captures scheduler and market state together.
func (c *Controller) Export() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Simulation: c.sched.Export(),
		Market:     c.state,
	}
}

// Import restores a Snapshot. The market part is validated before anything is applied;
// failures are *domain.StateLoadError.
func (c *Controller) Import(snap Snapshot) error {
	market, err := validateMarketState(snap.Market)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sched.Import(snap.Simulation); err != nil {
		return err
	}
	if err := c.sched.SetAllParameters(c.cfg.Policy.ParametersFor(market.Regime)); err != nil {
		return domain.NewStateLoadError("failed to apply saved regime policy", err)
	}
	c.state = market
	c.log.Info().
		Str("regime", string(market.Regime)).
		Float64("vix", market.VIX).
		Msg("Market state loaded")
	return nil
}

func validateMarketState(m MarketState) (MarketState, error) {
	if _, err := domain.ParseRegime(string(m.Regime)); err != nil {
		return m, domain.NewStateLoadError("unknown market regime", err)
	}
	if m.Status == "" {
		m.Status = domain.MarketStatusOpen
	}
	if _, err := domain.ParseMarketStatus(string(m.Status)); err != nil {
		return m, domain.NewStateLoadError("unknown market status", err)
	}
	if math.IsNaN(m.VIX) || m.VIX < MinVIX || m.VIX > MaxVIX {
		return m, domain.NewStateLoadError(fmt.Sprintf("VIX %v outside [%.0f, %.0f]", m.VIX, MinVIX, MaxVIX), nil)
	}
	return m, nil
}

// SaveState serialises Export as JSON.
func (c *Controller) SaveState() ([]byte, error) {
	data, err := json.Marshal(c.Export())
	if err != nil {
		return nil, fmt.Errorf("failed to encode market state: %w", err)
	}
	return data, nil
}

// LoadState restores a SaveState blob.
func (c *Controller) LoadState(blob []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return domain.NewStateLoadError("market state is not valid JSON", err)
	}
	return c.Import(snap)
}
