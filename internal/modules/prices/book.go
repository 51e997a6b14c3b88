// Package prices keeps the latest simulated quote for every symbol.
package prices

import (
	"fmt"
	"sync/atomic"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/simulation"
)

// Book holds the most recent PriceUpdateBatch. Each Apply swaps in a new
// immutable map, so readers never block the tick loop and always see one
// whole batch.
type Book struct {
	latest atomic.Pointer[simulation.PriceUpdateBatch]
}

// NewBook creates a book seeded with initial, which may be nil
func NewBook(initial simulation.PriceUpdateBatch) *Book {
	b := &Book{}
	b.Apply(initial)
	return b
}

// Apply replaces the book contents with a copy of batch
func (b *Book) Apply(batch simulation.PriceUpdateBatch) {
	next := make(simulation.PriceUpdateBatch, len(batch))
	for sym, q := range batch {
		next[sym] = q
	}
	b.latest.Store(&next)
}

// Latest returns the current batch. The returned map must not be modified.
func (b *Book) Latest() simulation.PriceUpdateBatch {
	return *b.latest.Load()
}

// Quote returns the latest quote for symbol
func (b *Book) Quote(symbol string) (simulation.Quote, error) {
	sym := catalog.NormalizeSymbol(symbol)
	q, ok := b.Latest()[sym]
	if !ok {
		return simulation.Quote{}, &catalog.SymbolNotFoundError{Symbol: sym}
	}
	return q, nil
}

// Price implements domain.PriceProvider
func (b *Book) Price(symbol string) (float64, error) {
	q, err := b.Quote(symbol)
	if err != nil {
		return 0, err
	}
	if q.Price <= 0 {
		return 0, fmt.Errorf("no valid price for %s", symbol)
	}
	return q.Price, nil
}

// Prices implements domain.PriceProvider
func (b *Book) Prices() map[string]float64 {
	return b.Latest().Prices()
}

// Len returns the number of quoted symbols
func (b *Book) Len() int {
	return len(b.Latest())
}
