package market_regime

import (
	"errors"
	"testing"
	"time"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordTransition(change RegimeChange) error {
	args := m.Called(change)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, cfg Config, rng simulation.RandomSource) *Controller {
	t.Helper()
	sched := simulation.NewScheduler(catalog.MustDefault(), simulation.Config{Interval: 5 * time.Millisecond}, simulation.NewRandomSource(3), zerolog.Nop())
	c, err := NewController(sched, cfg, rng, zerolog.Nop())
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	t.Cleanup(c.Stop)
	return c
}

func assertParams(t *testing.T, c *Controller, symbol string, mu, sigma float64) {
	t.Helper()
	gotMu, gotSigma, err := c.Scheduler().Parameters(symbol)
	require.NoError(t, err)
	assert.InDelta(t, mu, gotMu, 1e-12)
	assert.InDelta(t, sigma, gotSigma, 1e-12)
}

func TestNewController_StartsSideways(t *testing.T) {
	c := newTestController(t, Config{}, simulation.NewSequenceSource(0.5))

	state := c.State()
	assert.Equal(t, domain.RegimeSideways, state.Regime)
	assert.Equal(t, DefaultVIX, state.VIX)
	assert.Equal(t, domain.MarketStatusOpen, state.Status)
	assert.Equal(t, time.Minute, c.Config().CheckInterval)

	// AAPL base μ 0.25, σ 0.28
	assertParams(t, c, "AAPL", 0.25*0.2, 0.28)
}

func TestNewController_RejectsInvalidConfig(t *testing.T) {
	sched := simulation.NewScheduler(catalog.MustDefault(), simulation.Config{}, nil, zerolog.Nop())

	_, err := NewController(sched, Config{ChangeProbability: 1.5}, nil, zerolog.Nop())
	assert.Error(t, err)

	broken := DefaultPolicy()
	delete(broken, domain.RegimeBull)
	_, err = NewController(sched, Config{Policy: broken}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestCheckRegime_ZeroProbabilityNeverChanges(t *testing.T) {
	rng := simulation.NewSequenceSource(0.0, 0.3)
	c := newTestController(t, Config{ChangeProbability: 0}, rng)

	for i := 0; i < 20; i++ {
		assert.Nil(t, c.CheckRegime())
	}
	assert.Equal(t, domain.RegimeSideways, c.State().Regime)
	assert.Equal(t, 20, rng.Draws())
}

func TestCheckRegime_TransitionAppliesPolicy(t *testing.T) {
	// First draw passes the probability gate, second picks index 1 of [bull, bear]
	c := newTestController(t, Config{ChangeProbability: 1}, simulation.NewSequenceSource(0.0, 0.7))

	change := c.CheckRegime()

	require.NotNil(t, change)
	assert.Equal(t, domain.RegimeSideways, change.From)
	assert.Equal(t, domain.RegimeBear, change.To)
	assert.Equal(t, ReasonRandom, change.Reason)
	assert.Equal(t, fixedNow, change.At)

	state := c.State()
	assert.Equal(t, domain.RegimeBear, state.Regime)
	assert.Equal(t, fixedNow, state.LastRegimeChange)
	assertParams(t, c, "AAPL", -0.25, 0.28*1.5)
}

func TestCheckRegime_NeverReselectsCurrentRegime(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		checks := rapid.IntRange(1, 60).Draw(rt, "checks")

		sched := simulation.NewScheduler(catalog.MustDefault(), simulation.Config{}, simulation.NewRandomSource(1), zerolog.Nop())
		c, err := NewController(sched, Config{ChangeProbability: 1}, simulation.NewRandomSource(seed), zerolog.Nop())
		if err != nil {
			rt.Fatalf("new controller: %v", err)
		}

		for i := 0; i < checks; i++ {
			before := c.State().Regime
			change := c.CheckRegime()
			if change == nil {
				rt.Fatalf("check %d: expected a transition with probability 1", i)
			}
			if change.From != before || change.To == before {
				rt.Fatalf("check %d: invalid transition %s -> %s", i, change.From, change.To)
			}
			if c.State().Regime != change.To {
				rt.Fatalf("check %d: state not updated", i)
			}
		}
	})
}

func TestCheckRegime_NotifiesRecorderAndListeners(t *testing.T) {
	c := newTestController(t, Config{ChangeProbability: 1}, simulation.NewSequenceSource(0.0, 0.2))

	rec := &mockRecorder{}
	rec.On("RecordTransition", mock.MatchedBy(func(ch RegimeChange) bool {
		return ch.To == domain.RegimeBull && ch.Adjustment.DriftMultiplier == 1.5
	})).Return(nil).Once()
	c.SetRecorder(rec)

	var seen []RegimeChange
	c.OnRegimeChange(func(ch RegimeChange) { seen = append(seen, ch) })

	change := c.CheckRegime()

	require.NotNil(t, change)
	rec.AssertExpectations(t)
	require.Len(t, seen, 1)
	assert.Equal(t, domain.RegimeBull, seen[0].To)
}

func TestCheckRegime_RecorderFailureDoesNotBlockTransition(t *testing.T) {
	c := newTestController(t, Config{ChangeProbability: 1}, simulation.NewSequenceSource(0.0, 0.2))

	rec := &mockRecorder{}
	rec.On("RecordTransition", mock.Anything).Return(errors.New("disk full"))
	c.SetRecorder(rec)

	require.NotNil(t, c.CheckRegime())
	assert.Equal(t, domain.RegimeBull, c.State().Regime)
}

func TestForceRegime(t *testing.T) {
	c := newTestController(t, Config{}, simulation.NewSequenceSource(0.5))

	change, err := c.ForceRegime(domain.RegimeBull)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, ReasonForced, change.Reason)
	assertParams(t, c, "MSFT", 0.22*1.5, 0.26*0.8)

	same, err := c.ForceRegime(domain.RegimeBull)
	require.NoError(t, err)
	assert.Nil(t, same)

	_, err = c.ForceRegime(domain.Regime("crash"))
	assert.Error(t, err)
}

func TestTick_StepsVIXTowardTarget(t *testing.T) {
	c := newTestController(t, Config{}, simulation.NewSequenceSource(0.5))
	_, err := c.ForceRegime(domain.RegimeBear)
	require.NoError(t, err)

	batch := c.Tick()

	assert.Len(t, batch, 25)
	assert.InDelta(t, 15.15, c.State().VIX, 1e-12)
}

func TestSetStatus(t *testing.T) {
	c := newTestController(t, Config{}, nil)

	require.NoError(t, c.SetStatus(domain.MarketStatusAfterHours))
	assert.Equal(t, domain.MarketStatusAfterHours, c.State().Status)

	assert.Error(t, c.SetStatus("halted"))
	assert.Equal(t, domain.MarketStatusAfterHours, c.State().Status)
}

func TestReset_RestoresDefaults(t *testing.T) {
	c := newTestController(t, Config{}, simulation.NewSequenceSource(0.9))
	_, err := c.ForceRegime(domain.RegimeBull)
	require.NoError(t, err)
	require.NoError(t, c.SetStatus(domain.MarketStatusClosed))
	for i := 0; i < 5; i++ {
		c.Tick()
	}

	require.NoError(t, c.Reset())

	state := c.State()
	assert.Equal(t, domain.RegimeSideways, state.Regime)
	assert.Equal(t, DefaultVIX, state.VIX)
	assert.Equal(t, domain.MarketStatusOpen, state.Status)
	price, _ := c.Scheduler().CurrentPrice("AAPL")
	assert.Equal(t, 178.45, price)
	assertParams(t, c, "AAPL", 0.25*0.2, 0.28)
}

func TestSaveLoadState_RoundTrip(t *testing.T) {
	src := newTestController(t, Config{}, simulation.NewSequenceSource(0.8))
	_, err := src.ForceRegime(domain.RegimeBear)
	require.NoError(t, err)
	require.NoError(t, src.SetStatus(domain.MarketStatusPreMarket))
	for i := 0; i < 10; i++ {
		src.Tick()
	}

	blob, err := src.SaveState()
	require.NoError(t, err)

	dst := newTestController(t, Config{}, simulation.NewSequenceSource(0.1))
	require.NoError(t, dst.LoadState(blob))

	want, got := src.State(), dst.State()
	assert.Equal(t, want.Regime, got.Regime)
	assert.Equal(t, want.VIX, got.VIX)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.LastRegimeChange.Equal(got.LastRegimeChange))
	assert.Equal(t, src.Scheduler().Export(), dst.Scheduler().Export())
	assertParams(t, dst, "AAPL", -0.25, 0.28*1.5)
}

func TestLoadState_RejectsInvalidMarket(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "not json", blob: `{"market":`},
		{name: "unknown regime", blob: `{"market":{"regime":"crash","vix":20,"status":"open"}}`},
		{name: "unknown status", blob: `{"market":{"regime":"bull","vix":20,"status":"halted"}}`},
		{name: "vix out of range", blob: `{"market":{"regime":"bull","vix":95,"status":"open"}}`},
		{name: "bad price", blob: `{"simulation":{"AAPL":{"currentPrice":0,"previousPrice":1,"history":[]}},"market":{"regime":"bull","vix":20,"status":"open"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(t, Config{}, nil)
			before := c.Export()

			err := c.LoadState([]byte(tt.blob))

			var loadErr *domain.StateLoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, before.Market.Regime, c.State().Regime)
			assert.Equal(t, before.Simulation, c.Scheduler().Export())
		})
	}
}

func TestStartStop(t *testing.T) {
	c := newTestController(t, Config{CheckInterval: 5 * time.Millisecond, ChangeProbability: 1}, simulation.NewRandomSource(11))

	batches := make(chan simulation.PriceUpdateBatch, 100)
	assert.True(t, c.Start(func(b simulation.PriceUpdateBatch) {
		select {
		case batches <- b:
		default:
		}
	}))
	assert.False(t, c.Start(nil))
	assert.True(t, c.IsRunning())
	assert.True(t, c.Scheduler().IsRunning())

	select {
	case b := <-batches:
		assert.Len(t, b, 25)
	case <-time.After(time.Second):
		t.Fatal("no price batch received")
	}
	assert.Eventually(t, func() bool { return c.State().Regime != domain.RegimeSideways }, time.Second, time.Millisecond)

	c.Stop()
	assert.False(t, c.IsRunning())
	assert.False(t, c.Scheduler().IsRunning())

	ticks := c.Scheduler().TickCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, c.Scheduler().TickCount())
}
