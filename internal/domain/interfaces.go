package domain

// PriceProvider resolves the latest simulated price of a symbol.
// This interface lets trading and valuation read prices without depending on the simulation package.
type PriceProvider interface {
	// Price returns the latest price, or a *catalog.SymbolNotFoundError
	Price(symbol string) (float64, error)

	// Prices returns a snapshot of every latest price
	Prices() map[string]float64
}

// PriceHistoryProvider exposes bounded per-symbol price history
type PriceHistoryProvider interface {
	// GetPriceHistory returns at most window samples, oldest first
	GetPriceHistory(symbol string, window int) ([]float64, error)
}
