// Package catalog exposes the static, read-only table of tradable instruments
// that seeds the price simulation.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

//go:embed assets.json
var defaultAssets []byte

// Asset is one tradable instrument with its GBM base parameters.
type Asset struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Sector         string  `json:"sector"`
	InitialPrice   float64 `json:"initial_price"`
	BaseDrift      float64 `json:"base_drift"`      // μ, annualized
	BaseVolatility float64 `json:"base_volatility"` // σ, annualized
}

// Validate checks that the asset can seed a simulation.
func (a Asset) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return fmt.Errorf("asset symbol is required")
	}
	if math.IsNaN(a.InitialPrice) || math.IsInf(a.InitialPrice, 0) || a.InitialPrice <= 0 {
		return fmt.Errorf("asset %s: initial price must be positive, got %v", a.Symbol, a.InitialPrice)
	}
	if math.IsNaN(a.BaseDrift) || math.IsInf(a.BaseDrift, 0) {
		return fmt.Errorf("asset %s: base drift must be finite", a.Symbol)
	}
	if math.IsNaN(a.BaseVolatility) || math.IsInf(a.BaseVolatility, 0) || a.BaseVolatility < 0 {
		return fmt.Errorf("asset %s: base volatility must be a finite non-negative number", a.Symbol)
	}
	return nil
}

// SymbolNotFoundError is returned when a symbol is absent from the catalog or the simulation.
type SymbolNotFoundError struct {
	Symbol string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

// Catalog is an immutable, symbol-indexed asset table.
type Catalog struct {
	assets   []Asset
	bySymbol map[string]int
}

// New builds a catalog from assets. Symbols are normalised to upper case and must be unique.
func New(assets []Asset) (*Catalog, error) {
	c := &Catalog{
		assets:   make([]Asset, 0, len(assets)),
		bySymbol: make(map[string]int, len(assets)),
	}
	for _, a := range assets {
		a.Symbol = NormalizeSymbol(a.Symbol)
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.bySymbol[a.Symbol]; dup {
			return nil, fmt.Errorf("duplicate asset symbol %s", a.Symbol)
		}
		c.bySymbol[a.Symbol] = len(c.assets)
		c.assets = append(c.assets, a)
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	var assets []Asset
	if err := json.Unmarshal(defaultAssets, &assets); err != nil {
		return nil, fmt.Errorf("failed to decode embedded catalog: %w", err)
	}
	return New(assets)
}

// MustDefault is Default for wiring and tests; it panics on a broken embedded table.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get returns the asset for symbol.
func (c *Catalog) Get(symbol string) (Asset, error) {
	idx, ok := c.bySymbol[NormalizeSymbol(symbol)]
	if !ok {
		return Asset{}, &SymbolNotFoundError{Symbol: symbol}
	}
	return c.assets[idx], nil
}

// Has reports whether symbol is in the catalog.
func (c *Catalog) Has(symbol string) bool {
	_, ok := c.bySymbol[NormalizeSymbol(symbol)]
	return ok
}

// All returns a copy of every asset in catalog order.
func (c *Catalog) All() []Asset {
	out := make([]Asset, len(c.assets))
	copy(out, c.assets)
	return out
}

// Symbols returns all symbols sorted ascending.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a.Symbol)
	}
	sort.Strings(out)
	return out
}

// Len is the number of assets.
func (c *Catalog) Len() int {
	return len(c.assets)
}
