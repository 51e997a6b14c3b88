// Package simulation evolves asset prices with Geometric Brownian Motion and
// drives the periodic price tick.
package simulation

import (
	"math"
)

const (
	// MinPrice is the floor for every simulated price.
	MinPrice = 0.01
	// MaxPrice caps overflowed exponentials.
	MaxPrice = 1e12

	// TradingSecondsPerYear is 252 sessions of 6.5 hours.
	TradingSecondsPerYear = 252 * 6.5 * 3600
	// DefaultDT is one second of trading time expressed in years.
	DefaultDT = 1.0 / TradingSecondsPerYear
)

// StandardNormal draws Z ~ N(0,1) with the Box-Muller transform.
// Uniform draws of exactly 0 are resampled so log(0) never happens.
func StandardNormal(rng RandomSource) float64 {
	u1 := nonZeroUniform(rng)
	u2 := nonZeroUniform(rng)
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func nonZeroUniform(rng RandomSource) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return u
}

// NextPrice applies one GBM step:
//
//	price' = price · exp[(μ − σ²/2)·dt + σ·√dt·Z]
//
// With σ = 0 no draw is taken. A negative or NaN dt counts as zero elapsed time.
// The result is clamped to [MinPrice, MaxPrice]; NaN collapses to MinPrice.
func NextPrice(rng RandomSource, price, mu, sigma, dt float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		dt = 0
	}

	exponent := 0.0
	if rate := mu - 0.5*sigma*sigma; rate != 0 {
		exponent = rate * dt
	}
	if sigma != 0 && dt > 0 {
		exponent += sigma * math.Sqrt(dt) * StandardNormal(rng)
	}

	return ClampPrice(price * math.Exp(exponent))
}

// ClampPrice forces p into [MinPrice, MaxPrice].
func ClampPrice(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return MinPrice
	case p > MaxPrice:
		return MaxPrice
	case p < MinPrice:
		return MinPrice
	default:
		return p
	}
}

// Generator is a GBM process with fixed parameters and its own random source.
type Generator struct {
	Mu    float64
	Sigma float64
	rng   RandomSource
}

// NewGenerator creates a generator. A nil rng gets a time-seeded source.
func NewGenerator(mu, sigma float64, rng RandomSource) *Generator {
	if rng == nil {
		rng = NewRandomSource(0)
	}
	return &Generator{Mu: mu, Sigma: sigma, rng: rng}
}

// Next advances price by dt years.
func (g *Generator) Next(price, dt float64) float64 {
	return NextPrice(g.rng, price, g.Mu, g.Sigma, dt)
}

// SimulatePath applies the recurrence steps times and returns steps+1 prices,
// the first being start itself. Negative steps count as zero.
func (g *Generator) SimulatePath(start float64, steps int, dt float64) []float64 {
	if steps < 0 {
		steps = 0
	}
	path := make([]float64, steps+1)
	path[0] = start
	for i := 1; i <= steps; i++ {
		path[i] = g.Next(path[i-1], dt)
	}
	return path
}
