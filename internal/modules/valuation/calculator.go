// Package valuation computes portfolio value, gain/loss, per-position P&L and
// allocation from a ledger snapshot and a price map. Every function is pure.
package valuation

import (
	"sort"

	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/shopspring/decimal"
)

// CashSymbol is the synthetic allocation entry for uninvested cash
const CashSymbol = "CASH"

var hundred = decimal.NewFromInt(100)

// PositionValuation is one open position marked to market
type PositionValuation struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AverageCost  decimal.Decimal `json:"averageCost"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	MarketValue  decimal.Decimal `json:"marketValue"`
	CostBasis    decimal.Decimal `json:"costBasis"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   float64         `json:"pnlPercent"`
}

// AllocationEntry is one slice of the portfolio as a share of total value
type AllocationEntry struct {
	Symbol  string          `json:"symbol"`
	Value   decimal.Decimal `json:"value"`
	Percent float64         `json:"percent"`
}

// Snapshot is the full valuation of a portfolio at one point in time
type Snapshot struct {
	TotalValue      decimal.Decimal     `json:"totalValue"`
	Cash            decimal.Decimal     `json:"cash"`
	StartingCash    decimal.Decimal     `json:"startingCash"`
	GainLoss        decimal.Decimal     `json:"gainLoss"`
	GainLossPercent float64             `json:"gainLossPercent"`
	Positions       []PositionValuation `json:"positions"`
	Allocation      []AllocationEntry   `json:"allocation"`
}

// Movers holds the best and worst performing positions by P&L percent
type Movers struct {
	Gainers []PositionValuation `json:"gainers"`
	Losers  []PositionValuation `json:"losers"`
}

// Calculate values snap at prices. A symbol missing from prices (or quoted at
// a non-positive price) falls back to the position's last marked price.
func Calculate(snap portfolio.Snapshot, prices map[string]float64) Snapshot {
	positions := valuePositions(snap, prices)

	total := snap.Cash
	for _, p := range positions {
		total = total.Add(p.MarketValue)
	}

	gainLoss := total.Sub(snap.StartingCash)

	return Snapshot{
		TotalValue:      total,
		Cash:            snap.Cash,
		StartingCash:    snap.StartingCash,
		GainLoss:        gainLoss,
		GainLossPercent: percentOf(gainLoss, snap.StartingCash),
		Positions:       positions,
		Allocation:      allocation(snap.Cash, positions, total),
	}
}

// TotalValue returns cash plus the market value of every position
func TotalValue(snap portfolio.Snapshot, prices map[string]float64) decimal.Decimal {
	return Calculate(snap, prices).TotalValue
}

// TopMovers returns up to n gainers (P&L% descending) and n losers
// (P&L% ascending). Ties are broken by symbol. An empty portfolio yields
// empty lists.
func TopMovers(snap portfolio.Snapshot, prices map[string]float64, n int) Movers {
	movers := Movers{Gainers: []PositionValuation{}, Losers: []PositionValuation{}}
	if n <= 0 {
		return movers
	}

	positions := valuePositions(snap, prices)
	if len(positions) == 0 {
		return movers
	}

	byPnL := func(desc bool) []PositionValuation {
		sorted := make([]PositionValuation, len(positions))
		copy(sorted, positions)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if a.PnLPercent != b.PnLPercent {
				if desc {
					return a.PnLPercent > b.PnLPercent
				}
				return a.PnLPercent < b.PnLPercent
			}
			return a.Symbol < b.Symbol
		})
		if len(sorted) > n {
			sorted = sorted[:n]
		}
		return sorted
	}

	movers.Gainers = byPnL(true)
	movers.Losers = byPnL(false)
	return movers
}

func valuePositions(snap portfolio.Snapshot, prices map[string]float64) []PositionValuation {
	out := make([]PositionValuation, 0, len(snap.Positions))
	for _, pos := range snap.Positions {
		price := pos.CurrentPrice
		if quote, ok := prices[pos.Symbol]; ok && quote > 0 {
			price = quote
		}

		qty := decimal.NewFromInt(pos.Quantity)
		current := decimal.NewFromFloat(price)
		marketValue := current.Mul(qty)
		costBasis := pos.AverageCost.Mul(qty)
		pnl := marketValue.Sub(costBasis)

		out = append(out, PositionValuation{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			AverageCost:  pos.AverageCost,
			CurrentPrice: current,
			MarketValue:  marketValue,
			CostBasis:    costBasis,
			PnL:          pnl,
			PnLPercent:   percentOf(pnl, costBasis),
		})
	}
	return out
}

func allocation(cash decimal.Decimal, positions []PositionValuation, total decimal.Decimal) []AllocationEntry {
	entries := make([]AllocationEntry, 0, len(positions)+1)
	for _, p := range positions {
		entries = append(entries, AllocationEntry{
			Symbol:  p.Symbol,
			Value:   p.MarketValue,
			Percent: percentOf(p.MarketValue, total),
		})
	}
	entries = append(entries, AllocationEntry{
		Symbol:  CashSymbol,
		Value:   cash,
		Percent: percentOf(cash, total),
	})

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Percent != entries[j].Percent {
			return entries[i].Percent > entries[j].Percent
		}
		return entries[i].Symbol < entries[j].Symbol
	})
	return entries
}

// percentOf returns part/whole*100, or 0 when whole is zero
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
