// Package charts derives chart series, statistics and indicators from the
// simulated price history.
package charts

import (
	"fmt"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/pkg/formulas"
	"github.com/rs/zerolog"
)

// DefaultIndicatorPeriod is the lookback used for SMA/EMA/RSI when none is given
const DefaultIndicatorPeriod = 14

// ChartDataPoint represents a single point on a chart. Index counts samples
// from the start of the requested window.
type ChartDataPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// PriceStats summarises one symbol's recent history
type PriceStats struct {
	Symbol               string  `json:"symbol"`
	Samples              int     `json:"samples"`
	Current              float64 `json:"current"`
	First                float64 `json:"first"`
	Change               float64 `json:"change"`
	ChangePercent        float64 `json:"changePercent"`
	High                 float64 `json:"high"`
	Low                  float64 `json:"low"`
	Range                float64 `json:"range"`
	Mean                 float64 `json:"mean"`
	Volatility           float64 `json:"volatility"`
	AnnualizedVolatility float64 `json:"annualizedVolatility"`
	RealizedDrift        float64 `json:"realizedDrift"`
}

// Indicators holds technical indicators over one symbol's history.
// A nil value means the window is too short for that indicator.
type Indicators struct {
	Symbol  string   `json:"symbol"`
	Period  int      `json:"period"`
	Samples int      `json:"samples"`
	SMA     *float64 `json:"sma"`
	EMA     *float64 `json:"ema"`
	RSI     *float64 `json:"rsi"`
}

// Service provides chart data operations
type Service struct {
	history      domain.PriceHistoryProvider
	catalog      *catalog.Catalog
	stepsPerYear float64
	log          zerolog.Logger
}

// NewService creates a new charts service. dt is the simulated years per
// history sample and is used to annualise volatility and drift.
func NewService(history domain.PriceHistoryProvider, cat *catalog.Catalog, dt float64, log zerolog.Logger) *Service {
	stepsPerYear := 0.0
	if dt > 0 {
		stepsPerYear = 1 / dt
	}
	return &Service{
		history:      history,
		catalog:      cat,
		stepsPerYear: stepsPerYear,
		log:          log.With().Str("service", "charts").Logger(),
	}
}

// GetSeries returns the last window samples of symbol as chart points
func (s *Service) GetSeries(symbol string, window int) ([]ChartDataPoint, error) {
	prices, err := s.history.GetPriceHistory(symbol, window)
	if err != nil {
		return nil, err
	}
	points := make([]ChartDataPoint, len(prices))
	for i, p := range prices {
		points[i] = ChartDataPoint{Index: i, Value: p}
	}
	return points, nil
}

// GetSparklines returns, for every catalog symbol, the last window samples
// averaged down to at most points buckets
func (s *Service) GetSparklines(window, points int) (map[string][]ChartDataPoint, error) {
	if points <= 0 {
		return nil, fmt.Errorf("invalid points: %d (must be positive)", points)
	}

	result := make(map[string][]ChartDataPoint, s.catalog.Len())
	for _, symbol := range s.catalog.Symbols() {
		prices, err := s.history.GetPriceHistory(symbol, window)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Skipping sparkline")
			continue
		}
		result[symbol] = downsample(prices, points)
	}
	return result, nil
}

// downsample averages prices into at most n equally sized buckets
func downsample(prices []float64, n int) []ChartDataPoint {
	if len(prices) <= n {
		out := make([]ChartDataPoint, len(prices))
		for i, p := range prices {
			out[i] = ChartDataPoint{Index: i, Value: p}
		}
		return out
	}

	out := make([]ChartDataPoint, 0, n)
	for b := 0; b < n; b++ {
		start := b * len(prices) / n
		end := (b + 1) * len(prices) / n
		out = append(out, ChartDataPoint{Index: start, Value: formulas.Mean(prices[start:end])})
	}
	return out
}

// Stats computes change, range and volatility over the last window samples
func (s *Service) Stats(symbol string, window int) (*PriceStats, error) {
	prices, err := s.history.GetPriceHistory(symbol, window)
	if err != nil {
		return nil, err
	}

	stats := &PriceStats{Symbol: catalog.NormalizeSymbol(symbol), Samples: len(prices)}
	if len(prices) == 0 {
		return stats, nil
	}

	stats.Current = prices[len(prices)-1]
	stats.First = prices[0]
	stats.Change = formulas.Change(stats.Current, stats.First)
	stats.ChangePercent = formulas.ChangePercent(stats.Current, stats.First)
	stats.High = formulas.High(prices)
	stats.Low = formulas.Low(prices)
	stats.Range = formulas.Range(prices)
	stats.Mean = formulas.Mean(prices)
	stats.Volatility = formulas.HistoricalVolatility(prices)
	stats.AnnualizedVolatility = formulas.AnnualizedVolatility(prices, s.stepsPerYear)
	stats.RealizedDrift = formulas.RealizedDrift(prices, s.stepsPerYear)
	return stats, nil
}

// GetIndicators computes SMA, EMA and RSI with the given period over the last window samples
func (s *Service) GetIndicators(symbol string, window, period int) (*Indicators, error) {
	if period <= 0 {
		period = DefaultIndicatorPeriod
	}
	prices, err := s.history.GetPriceHistory(symbol, window)
	if err != nil {
		return nil, err
	}

	return &Indicators{
		Symbol:  catalog.NormalizeSymbol(symbol),
		Period:  period,
		Samples: len(prices),
		SMA:     formulas.CalculateSMA(prices, period),
		EMA:     formulas.CalculateEMA(prices, period),
		RSI:     formulas.CalculateRSI(prices, period),
	}, nil
}
