package market_regime

import (
	"math"
	"testing"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	tests := []struct {
		regime    domain.Regime
		drift     float64
		vol       float64
		vixTarget float64
	}{
		{domain.RegimeBull, 1.5, 0.8, 12},
		{domain.RegimeBear, -1.0, 1.5, 30},
		{domain.RegimeSideways, 0.2, 1.0, 15},
	}

	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			adj := p[tt.regime]
			assert.Equal(t, tt.drift, adj.DriftMultiplier)
			assert.Equal(t, tt.vol, adj.VolatilityMultiplier)
			assert.Equal(t, tt.vixTarget, adj.VIXTarget)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	missing := DefaultPolicy()
	delete(missing, domain.RegimeBear)
	assert.Error(t, missing.Validate())

	negative := DefaultPolicy()
	negative[domain.RegimeBull] = Adjustment{DriftMultiplier: 1, VolatilityMultiplier: -0.1, VIXTarget: 12}
	assert.Error(t, negative.Validate())

	badTarget := DefaultPolicy()
	badTarget[domain.RegimeBear] = Adjustment{DriftMultiplier: -1, VolatilityMultiplier: 1.5, VIXTarget: 95}
	assert.Error(t, badTarget.Validate())

	nan := DefaultPolicy()
	nan[domain.RegimeSideways] = Adjustment{DriftMultiplier: math.NaN(), VolatilityMultiplier: 1, VIXTarget: 15}
	assert.Error(t, nan.Validate())
}

func TestPolicy_ParametersForScalesBaseValues(t *testing.T) {
	asset := catalog.Asset{Symbol: "X", InitialPrice: 10, BaseDrift: 0.2, BaseVolatility: 0.4}

	mu, sigma := DefaultPolicy().ParametersFor(domain.RegimeBear)(asset)

	assert.InDelta(t, -0.2, mu, 1e-12)
	assert.InDelta(t, 0.6, sigma, 1e-12)
}

func TestNextVIX_MeanReversionWithoutNoise(t *testing.T) {
	// A draw of 0.5 yields zero noise
	rng := simulation.NewSequenceSource(0.5)

	got := NextVIX(15, 30, rng)

	assert.InDelta(t, 15.15, got, 1e-12)
}

func TestNextVIX_StaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vix := rapid.Float64Range(MinVIX, MaxVIX).Draw(t, "vix")
		target := rapid.SampledFrom([]float64{12, 15, 30}).Draw(t, "target")
		seed := rapid.Uint64().Draw(t, "seed")
		steps := rapid.IntRange(1, 500).Draw(t, "steps")

		rng := simulation.NewRandomSource(seed)
		for i := 0; i < steps; i++ {
			vix = NextVIX(vix, target, rng)
			if vix < MinVIX || vix > MaxVIX {
				t.Fatalf("step %d: vix %v out of range", i, vix)
			}
		}
	})
}

func TestClampVIX(t *testing.T) {
	assert.Equal(t, MinVIX, ClampVIX(3))
	assert.Equal(t, MaxVIX, ClampVIX(120))
	assert.Equal(t, 42.0, ClampVIX(42))
	assert.Equal(t, DefaultVIX, ClampVIX(math.NaN()))
}
