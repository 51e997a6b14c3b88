// Package market_regime drives the bull/bear/sideways state machine that
// perturbs simulation drift and volatility, and the synthetic VIX.
package market_regime

import (
	"fmt"
	"math"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/simulation"
)

// VIX bounds and dynamics
const (
	MinVIX = 10.0
	MaxVIX = 80.0
	// DefaultVIX is the starting level, equal to the sideways target
	DefaultVIX = 15.0
	// VIXReversionRate is the per-tick pull toward the regime target
	VIXReversionRate = 0.01
	// VIXNoise bounds the symmetric per-tick perturbation
	VIXNoise = 1.0
)

// Adjustment scales an asset's base drift and volatility.
type Adjustment struct {
	DriftMultiplier      float64 `json:"drift_multiplier"`
	VolatilityMultiplier float64 `json:"volatility_multiplier"`
	VIXTarget            float64 `json:"vix_target"`
}

// Policy maps every regime to its adjustment.
type Policy map[domain.Regime]Adjustment

// DefaultPolicy: bull lifts drift and calms volatility, bear inverts drift
// and amplifies volatility, sideways mutes drift.
func DefaultPolicy() Policy {
	return Policy{
		domain.RegimeBull:     {DriftMultiplier: 1.5, VolatilityMultiplier: 0.8, VIXTarget: 12},
		domain.RegimeBear:     {DriftMultiplier: -1.0, VolatilityMultiplier: 1.5, VIXTarget: 30},
		domain.RegimeSideways: {DriftMultiplier: 0.2, VolatilityMultiplier: 1.0, VIXTarget: 15},
	}
}

// Validate checks that every regime is covered with usable coefficients.
func (p Policy) Validate() error {
	for _, r := range domain.Regimes {
		adj, ok := p[r]
		if !ok {
			return fmt.Errorf("policy has no entry for regime %s", r)
		}
		if math.IsNaN(adj.DriftMultiplier) || math.IsInf(adj.DriftMultiplier, 0) {
			return fmt.Errorf("regime %s: drift multiplier must be finite", r)
		}
		if math.IsNaN(adj.VolatilityMultiplier) || math.IsInf(adj.VolatilityMultiplier, 0) || adj.VolatilityMultiplier < 0 {
			return fmt.Errorf("regime %s: volatility multiplier must be finite and non-negative", r)
		}
		if adj.VIXTarget < MinVIX || adj.VIXTarget > MaxVIX {
			return fmt.Errorf("regime %s: VIX target %.2f outside [%.0f, %.0f]", r, adj.VIXTarget, MinVIX, MaxVIX)
		}
	}
	return nil
}

// ParametersFor returns the simulation.ParameterFunc applying regime r uniformly to every asset.
func (p Policy) ParametersFor(r domain.Regime) simulation.ParameterFunc {
	adj := p[r]
	return func(a catalog.Asset) (float64, float64) {
		return a.BaseDrift * adj.DriftMultiplier, a.BaseVolatility * adj.VolatilityMultiplier
	}
}

// NextVIX applies one mean-reverting step toward target with noise in
// [-VIXNoise, VIXNoise], clamped to [MinVIX, MaxVIX].
func NextVIX(vix, target float64, rng simulation.RandomSource) float64 {
	noise := (2*rng.Float64() - 1) * VIXNoise
	return ClampVIX(vix + (target-vix)*VIXReversionRate + noise)
}

// ClampVIX forces v into [MinVIX, MaxVIX]; NaN becomes DefaultVIX.
func ClampVIX(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultVIX
	case v < MinVIX:
		return MinVIX
	case v > MaxVIX:
		return MaxVIX
	default:
		return v
	}
}
