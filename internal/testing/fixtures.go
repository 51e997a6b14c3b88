package testing

import (
	"testing"

	"github.com/aristath/tradesim/internal/catalog"
)

// NewAssetFixtures returns a small, stable asset table for tests
func NewAssetFixtures() []catalog.Asset {
	return []catalog.Asset{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", InitialPrice: 150, BaseDrift: 0.1, BaseVolatility: 0.2},
		{Symbol: "KO", Name: "The Coca-Cola Company", Sector: "Consumer Goods", InitialPrice: 60, BaseDrift: 0.05, BaseVolatility: 0.15},
		{Symbol: "TSLA", Name: "Tesla Inc.", Sector: "Automotive", InitialPrice: 250, BaseDrift: 0.2, BaseVolatility: 0.6},
	}
}

// NewTestCatalog builds a catalog from NewAssetFixtures
func NewTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(NewAssetFixtures())
	if err != nil {
		t.Fatalf("Failed to build test catalog: %v", err)
	}
	return c
}
