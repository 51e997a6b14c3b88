package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedAssets(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 25, c.Len())

	aapl, err := c.Get("aapl")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", aapl.Name)
	assert.Equal(t, 178.45, aapl.InitialPrice)
	assert.Equal(t, 0.25, aapl.BaseDrift)
	assert.Equal(t, 0.28, aapl.BaseVolatility)
}

func TestGet_UnknownSymbol(t *testing.T) {
	c := MustDefault()

	_, err := c.Get("NOPE")
	require.Error(t, err)

	var notFound *SymbolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "NOPE", notFound.Symbol)
	assert.False(t, c.Has("NOPE"))
}

func TestNew_RejectsInvalidAssets(t *testing.T) {
	testCases := []struct {
		name   string
		assets []Asset
	}{
		{"empty symbol", []Asset{{Symbol: " ", InitialPrice: 1}}},
		{"zero price", []Asset{{Symbol: "X", InitialPrice: 0}}},
		{"negative volatility", []Asset{{Symbol: "X", InitialPrice: 1, BaseVolatility: -0.1}}},
		{"duplicate", []Asset{{Symbol: "X", InitialPrice: 1}, {Symbol: "x", InitialPrice: 2}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.assets)
			assert.Error(t, err)
		})
	}
}

func TestSymbols_Sorted(t *testing.T) {
	c, err := New([]Asset{
		{Symbol: "msft", InitialPrice: 1},
		{Symbol: "AAPL", InitialPrice: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Symbols())
}
