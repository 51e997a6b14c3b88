// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
)

// Currency represents a currency code
type Currency string

// CurrencyUSD is the only settlement currency of the simulation
const CurrencyUSD Currency = "USD"

// Side represents the direction of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide converts a case-insensitive string to a Side
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("invalid trade side %q", s)
}

// OrderType represents how the execution price is resolved
type OrderType string

const (
	// OrderTypeMarket executes at the latest simulated price
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeLimit executes at the caller-supplied limit price
	OrderTypeLimit OrderType = "LIMIT"
)

// ParseOrderType converts a case-insensitive string to an OrderType.
// An empty string means MARKET.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", OrderTypeMarket:
		return OrderTypeMarket, nil
	case OrderTypeLimit:
		return OrderTypeLimit, nil
	}
	return "", fmt.Errorf("invalid order type %q", s)
}

// Regime is the discrete market mode driving drift/volatility adjustments
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
)

// Regimes lists every regime in a stable order
var Regimes = []Regime{RegimeBull, RegimeBear, RegimeSideways}

// ParseRegime converts a case-insensitive string to a Regime
func ParseRegime(s string) (Regime, error) {
	r := Regime(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Regimes {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid market regime %q", s)
}

// Others returns the two regimes different from r, in stable order
func (r Regime) Others() []Regime {
	out := make([]Regime, 0, len(Regimes)-1)
	for _, candidate := range Regimes {
		if candidate != r {
			out = append(out, candidate)
		}
	}
	return out
}

// MarketStatus is the trading session state shown to clients
type MarketStatus string

const (
	MarketStatusOpen       MarketStatus = "open"
	MarketStatusClosed     MarketStatus = "closed"
	MarketStatusPreMarket  MarketStatus = "pre-market"
	MarketStatusAfterHours MarketStatus = "after-hours"
)

// ParseMarketStatus converts a case-insensitive string to a MarketStatus
func ParseMarketStatus(s string) (MarketStatus, error) {
	switch st := MarketStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case MarketStatusOpen, MarketStatusClosed, MarketStatusPreMarket, MarketStatusAfterHours:
		return st, nil
	}
	return "", fmt.Errorf("invalid market status %q", s)
}
