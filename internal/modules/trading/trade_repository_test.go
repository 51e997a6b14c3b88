package trading

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory ledger database with the trades table
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own empty :memory: database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
			order_type TEXT NOT NULL DEFAULT 'MARKET',
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			price REAL NOT NULL CHECK (price > 0),
			fee TEXT NOT NULL,
			total TEXT NOT NULL,
			executed_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	return db
}

func newTransaction(id, symbol string, side domain.Side, qty int64, price string, at time.Time) portfolio.Transaction {
	p := decimal.RequireFromString(price)
	notional := p.Mul(decimal.NewFromInt(qty))
	fee := notional.Mul(decimal.RequireFromString("0.001"))
	total := notional.Sub(fee)
	if side == domain.SideBuy {
		total = notional.Add(fee).Neg()
	}
	return portfolio.Transaction{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		OrderType: domain.OrderTypeMarket,
		Quantity:  qty,
		Price:     p,
		Fee:       fee,
		Total:     total,
		Timestamp: at,
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	repo := NewTradeRepository(setupTestDB(t), zerolog.Nop())
	at := time.Date(2024, 3, 4, 14, 30, 0, 123_000_000, time.UTC)
	tx := newTransaction("t-1", "aapl", domain.SideBuy, 10, "150", at)

	require.NoError(t, repo.Create(tx))

	got, err := repo.GetByID("t-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, domain.SideBuy, got.Side)
	assert.Equal(t, domain.OrderTypeMarket, got.OrderType)
	assert.Equal(t, int64(10), got.Quantity)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(150)))
	assert.True(t, got.Fee.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, got.Total.Equal(decimal.RequireFromString("-1501.5")))
	assert.True(t, at.Equal(got.Timestamp))

	missing, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreate_Validates(t *testing.T) {
	repo := NewTradeRepository(setupTestDB(t), zerolog.Nop())
	at := time.Now()

	testCases := []struct {
		name   string
		mutate func(tx *portfolio.Transaction)
	}{
		{name: "missing id", mutate: func(tx *portfolio.Transaction) { tx.ID = "" }},
		{name: "missing symbol", mutate: func(tx *portfolio.Transaction) { tx.Symbol = " " }},
		{name: "bad side", mutate: func(tx *portfolio.Transaction) { tx.Side = "HOLD" }},
		{name: "zero quantity", mutate: func(tx *portfolio.Transaction) { tx.Quantity = 0 }},
		{name: "zero price", mutate: func(tx *portfolio.Transaction) { tx.Price = decimal.Zero }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx := newTransaction("t-x", "KO", domain.SideSell, 1, "60", at)
			tc.mutate(&tx)
			assert.Error(t, repo.Create(tx))
		})
	}

	history, err := repo.GetHistory(10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCreate_SkipsDuplicateID(t *testing.T) {
	repo := NewTradeRepository(setupTestDB(t), zerolog.Nop())
	tx := newTransaction("dup", "MSFT", domain.SideBuy, 1, "400", time.Now())

	require.NoError(t, repo.Create(tx))
	require.NoError(t, repo.Create(tx))

	history, err := repo.GetHistory(10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGetHistory_NewestFirst(t *testing.T) {
	repo := NewTradeRepository(setupTestDB(t), zerolog.Nop())
	base := time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(newTransaction("a", "AAPL", domain.SideBuy, 1, "150", base)))
	require.NoError(t, repo.Create(newTransaction("b", "KO", domain.SideBuy, 2, "60", base.Add(time.Second))))
	require.NoError(t, repo.Create(newTransaction("c", "AAPL", domain.SideSell, 1, "155", base.Add(2*time.Second))))

	history, err := repo.GetHistory(2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].ID)
	assert.Equal(t, "b", history[1].ID)

	aapl, err := repo.GetBySymbol("aapl", 10)
	require.NoError(t, err)
	require.Len(t, aapl, 2)
	assert.Equal(t, "c", aapl[0].ID)
	assert.Equal(t, "a", aapl[1].ID)

	last, err := repo.GetLastTradeTimestamp()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, base.Add(2*time.Second).Equal(*last))

	count, err := repo.CountSince(base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEmptyRepository(t *testing.T) {
	repo := NewTradeRepository(setupTestDB(t), zerolog.Nop())

	last, err := repo.GetLastTradeTimestamp()
	require.NoError(t, err)
	assert.Nil(t, last)

	exists, err := repo.Exists("x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteAll(t *testing.T) {
	repo := NewTradeRepository(setupTestDB(t), zerolog.Nop())
	require.NoError(t, repo.Create(newTransaction("a", "AAPL", domain.SideBuy, 1, "150", time.Now())))
	require.NoError(t, repo.Create(newTransaction("b", "AAPL", domain.SideBuy, 1, "151", time.Now())))

	n, err := repo.DeleteAll()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	history, err := repo.GetHistory(10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
