// Package formulas provides numeric helpers over simulated price series.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// LogReturns converts prices to log returns.
// Returns[i] = ln(Price[i+1] / Price[i]); non-positive prices are skipped.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	return returns
}

// HistoricalVolatility is the per-step standard deviation of log returns.
func HistoricalVolatility(prices []float64) float64 {
	return StdDev(LogReturns(prices))
}

// AnnualizedVolatility scales per-step volatility by sqrt(stepsPerYear).
func AnnualizedVolatility(prices []float64, stepsPerYear float64) float64 {
	if stepsPerYear <= 0 {
		return 0
	}
	return HistoricalVolatility(prices) * math.Sqrt(stepsPerYear)
}

// RealizedDrift estimates the annualized GBM drift μ from a price path:
// mean(log return) * stepsPerYear + σ²/2.
func RealizedDrift(prices []float64, stepsPerYear float64) float64 {
	returns := LogReturns(prices)
	if len(returns) == 0 || stepsPerYear <= 0 {
		return 0
	}
	sigma := AnnualizedVolatility(prices, stepsPerYear)
	return Mean(returns)*stepsPerYear + 0.5*sigma*sigma
}

// High returns the maximum of the series, 0 for an empty series.
func High(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	return floats.Max(prices)
}

// Low returns the minimum of the series, 0 for an empty series.
func Low(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	return floats.Min(prices)
}

// Range is High - Low.
func Range(prices []float64) float64 {
	return High(prices) - Low(prices)
}

// Change is current - previous.
func Change(current, previous float64) float64 {
	return current - previous
}

// ChangePercent is the percentage move from previous to current, 0 when previous is 0.
func ChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}
