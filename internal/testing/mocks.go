package testing

import (
	"sync"

	"github.com/aristath/tradesim/internal/catalog"
)

// MockPriceProvider is a mock implementation of domain.PriceProvider for testing
type MockPriceProvider struct {
	mu     sync.RWMutex
	prices map[string]float64
	err    error
}

// NewMockPriceProvider creates a mock seeded with prices
func NewMockPriceProvider(prices map[string]float64) *MockPriceProvider {
	m := &MockPriceProvider{prices: make(map[string]float64)}
	for sym, p := range prices {
		m.prices[sym] = p
	}
	return m
}

// SetPrice sets the price returned for symbol
func (m *MockPriceProvider) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetError sets the error to return from Price
func (m *MockPriceProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Price returns the configured price or *catalog.SymbolNotFoundError
func (m *MockPriceProvider) Price(symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	p, ok := m.prices[catalog.NormalizeSymbol(symbol)]
	if !ok {
		return 0, &catalog.SymbolNotFoundError{Symbol: symbol}
	}
	return p, nil
}

// Prices returns a copy of all configured prices
func (m *MockPriceProvider) Prices() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.prices))
	for sym, p := range m.prices {
		out[sym] = p
	}
	return out
}

// MockPriceHistoryProvider is a mock implementation of domain.PriceHistoryProvider for testing
type MockPriceHistoryProvider struct {
	mu      sync.RWMutex
	history map[string][]float64
}

// NewMockPriceHistoryProvider creates a mock seeded with history
func NewMockPriceHistoryProvider(history map[string][]float64) *MockPriceHistoryProvider {
	return &MockPriceHistoryProvider{history: history}
}

// GetPriceHistory returns the last window samples of symbol
func (m *MockPriceHistoryProvider) GetPriceHistory(symbol string, window int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[catalog.NormalizeSymbol(symbol)]
	if !ok {
		return nil, &catalog.SymbolNotFoundError{Symbol: symbol}
	}
	if window > 0 && window < len(h) {
		h = h[len(h)-window:]
	}
	out := make([]float64, len(h))
	copy(out, h)
	return out, nil
}
