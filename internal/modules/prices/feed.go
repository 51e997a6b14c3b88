package prices

import (
	"sync/atomic"

	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/rs/zerolog"
)

// Marker revalues held positions at new prices
type Marker interface {
	MarkToMarket(prices map[string]float64)
}

// Feed receives every scheduler batch: it updates the book, marks the
// portfolio to market and announces PRICE_UPDATED.
type Feed struct {
	book         *Book
	marker       Marker
	eventManager *events.Manager
	ticks        atomic.Uint64
	log          zerolog.Logger
}

// NewFeed creates a feed. marker and eventManager may be nil.
func NewFeed(book *Book, marker Marker, eventManager *events.Manager, log zerolog.Logger) *Feed {
	return &Feed{
		book:         book,
		marker:       marker,
		eventManager: eventManager,
		log:          log.With().Str("component", "price_feed").Logger(),
	}
}

// OnUpdate is the simulation.UpdateFunc for the running scheduler
func (f *Feed) OnUpdate(batch simulation.PriceUpdateBatch) {
	f.book.Apply(batch)
	tick := f.ticks.Add(1)

	prices := batch.Prices()
	if f.marker != nil {
		f.marker.MarkToMarket(prices)
	}
	if f.eventManager != nil {
		f.eventManager.EmitTyped("prices", &events.PriceUpdatedData{
			Tick:    tick,
			Symbols: len(batch),
			Prices:  prices,
		})
	}
	f.log.Debug().Uint64("tick", tick).Int("symbols", len(batch)).Msg("Prices updated")
}

// Ticks returns how many batches the feed has received
func (f *Feed) Ticks() uint64 {
	return f.ticks.Load()
}

// Book returns the book the feed writes to
func (f *Feed) Book() *Book {
	return f.book
}
