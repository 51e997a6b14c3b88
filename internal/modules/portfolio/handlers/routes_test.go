package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	testutil "github.com/aristath/tradesim/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T) (*portfolio.Ledger, *testutil.MockPriceProvider, *events.Bus, chi.Router) {
	t.Helper()
	ledger, err := portfolio.NewLedger(portfolio.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	prices := testutil.NewMockPriceProvider(map[string]float64{"AAPL": 160, "KO": 55})
	bus := events.NewBus(zerolog.Nop())

	handler := NewHandler(ledger, prices, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	router := chi.NewRouter()
	require.NotPanics(t, func() { handler.RegisterRoutes(router) })
	return ledger, prices, bus, router
}

func serve(router chi.Router, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutes(t *testing.T) {
	_, _, _, router := setupHandler(t)

	testCases := []struct {
		method string
		path   string
		name   string
	}{
		{"GET", "/portfolio/", "GetPortfolio"},
		{"GET", "/portfolio/valuation", "GetValuation"},
		{"GET", "/portfolio/movers", "GetMovers"},
		{"GET", "/portfolio/transactions", "GetTransactions"},
		{"POST", "/portfolio/reset", "Reset"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, tc.method, tc.path)
			assert.Equal(t, http.StatusOK, rec.Code, "Route %s %s should be served", tc.method, tc.path)
		})
	}
}

func TestHandleGetValuation(t *testing.T) {
	ledger, _, _, router := setupHandler(t)
	require.True(t, ledger.ExecuteTrade(portfolio.TradeOrder{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, Price: 150}).Success)

	rec := serve(router, "GET", "/portfolio/valuation")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Formatted map[string]string `json:"formatted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "$100,098.50", body.Formatted["totalValue"])
	assert.Equal(t, "$98,498.50", body.Formatted["cash"])
	assert.Equal(t, "+$98.50", body.Formatted["gainLoss"])
}

func TestHandleGetMovers(t *testing.T) {
	ledger, _, _, router := setupHandler(t)
	require.True(t, ledger.ExecuteTrade(portfolio.TradeOrder{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: 150}).Success)
	require.True(t, ledger.ExecuteTrade(portfolio.TradeOrder{Symbol: "KO", Side: domain.SideBuy, Quantity: 1, Price: 60}).Success)

	rec := serve(router, "GET", "/portfolio/movers?n=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Gainers []struct{ Symbol string } `json:"gainers"`
		Losers  []struct{ Symbol string } `json:"losers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Gainers, 1)
	require.Len(t, body.Losers, 1)
	assert.Equal(t, "AAPL", body.Gainers[0].Symbol)
	assert.Equal(t, "KO", body.Losers[0].Symbol)

	assert.Equal(t, http.StatusBadRequest, serve(router, "GET", "/portfolio/movers?n=-1").Code)
}

func TestHandleReset(t *testing.T) {
	ledger, _, bus, router := setupHandler(t)
	require.True(t, ledger.ExecuteTrade(portfolio.TradeOrder{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: 150}).Success)

	var reasons []interface{}
	bus.Subscribe(events.PortfolioChanged, func(e *events.Event) { reasons = append(reasons, e.Data["reason"]) })

	rec := serve(router, "POST", "/portfolio/reset")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ledger.Cash().Equal(portfolio.DefaultConfig().StartingCash))
	assert.Empty(t, ledger.Transactions())
	assert.Equal(t, []interface{}{"reset"}, reasons)
}
