package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/tradesim/internal/catalog"
	"github.com/aristath/tradesim/internal/domain"
	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/market_regime"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/simulation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	controller *market_regime.Controller
	ledger     *portfolio.Ledger
}

func newWorld(t *testing.T, seed uint64) world {
	t.Helper()
	sched := simulation.NewScheduler(catalog.MustDefault(), simulation.Config{Interval: time.Hour}, simulation.NewRandomSource(seed), zerolog.Nop())
	controller, err := market_regime.NewController(sched, market_regime.Config{}, simulation.NewRandomSource(seed+1), zerolog.Nop())
	require.NoError(t, err)
	ledger, err := portfolio.NewLedger(portfolio.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return world{controller: controller, ledger: ledger}
}

type recordedEvents struct {
	mu    sync.Mutex
	types []events.EventType
}

func newManager(rec *recordedEvents) *events.Manager {
	bus := events.NewBus(zerolog.Nop())
	for _, typ := range []events.EventType{events.StateSaved, events.StateLoadFailed} {
		bus.Subscribe(typ, func(e *events.Event) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.types = append(rec.types, e.Type)
		})
	}
	return events.NewManager(bus, zerolog.Nop())
}

func populate(t *testing.T, w world) {
	t.Helper()
	for i := 0; i < 5; i++ {
		w.controller.Tick()
	}
	_, err := w.controller.ForceRegime(domain.RegimeBull)
	require.NoError(t, err)

	price, err := w.controller.Scheduler().CurrentPrice("AAPL")
	require.NoError(t, err)
	result := w.ledger.ExecuteTrade(portfolio.TradeOrder{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, Price: price})
	require.True(t, result.Success, result.Error)
}

func TestService_SaveLoadRoundTrip(t *testing.T) {
	for _, codecName := range []string{CodecJSON, CodecMsgpack} {
		t.Run(codecName, func(t *testing.T) {
			ctx := context.Background()
			codec, err := NewCodec(codecName)
			require.NoError(t, err)
			store := NewMemoryStore()
			rec := &recordedEvents{}

			src := newWorld(t, 11)
			populate(t, src)
			saver := NewService(store, codec, src.controller, src.ledger, newManager(rec), zerolog.Nop())
			require.NoError(t, saver.Save(ctx))
			assert.False(t, saver.LastSaved().IsZero())
			assert.Equal(t, []events.EventType{events.StateSaved}, rec.types)

			dst := newWorld(t, 99)
			loader := NewService(store, codec, dst.controller, dst.ledger, nil, zerolog.Nop())
			require.NoError(t, loader.Load(ctx))

			assert.Equal(t, src.controller.Export().Simulation, dst.controller.Export().Simulation)

			srcMarket, dstMarket := src.controller.State(), dst.controller.State()
			assert.Equal(t, domain.RegimeBull, dstMarket.Regime)
			assert.Equal(t, srcMarket.VIX, dstMarket.VIX)
			assert.Equal(t, srcMarket.Status, dstMarket.Status)
			assert.True(t, srcMarket.LastRegimeChange.Equal(dstMarket.LastRegimeChange))

			srcSnap, dstSnap := src.ledger.Snapshot(), dst.ledger.Snapshot()
			assert.True(t, srcSnap.Cash.Equal(dstSnap.Cash), "%s != %s", srcSnap.Cash, dstSnap.Cash)
			require.Len(t, dstSnap.Positions, 1)
			assert.Equal(t, int64(10), dstSnap.Positions[0].Quantity)
			assert.True(t, srcSnap.Positions[0].AverageCost.Equal(dstSnap.Positions[0].AverageCost))
			require.Len(t, dstSnap.Transactions, 1)
			assert.Equal(t, srcSnap.Transactions[0].ID, dstSnap.Transactions[0].ID)
			assert.True(t, srcSnap.Transactions[0].Fee.Equal(dstSnap.Transactions[0].Fee))
			assert.True(t, srcSnap.Transactions[0].Timestamp.Equal(dstSnap.Transactions[0].Timestamp))

			// regime policy follows the restored regime
			mu, sigma, err := dst.controller.Scheduler().Parameters("AAPL")
			require.NoError(t, err)
			assert.InDelta(t, 0.25*1.5, mu, 1e-12)
			assert.InDelta(t, 0.28*0.8, sigma, 1e-12)
		})
	}
}

func TestService_LoadWithoutState(t *testing.T) {
	w := newWorld(t, 1)
	svc := NewService(NewMemoryStore(), JSONCodec{}, w.controller, w.ledger, nil, zerolog.Nop())

	assert.ErrorIs(t, svc.Load(context.Background()), ErrNoState)
}

func TestService_LoadRejectsBadDocuments(t *testing.T) {
	validMarket := market_regime.MarketState{Regime: domain.RegimeBear, VIX: 30, Status: domain.MarketStatusOpen}

	tests := []struct {
		name  string
		blob  func(t *testing.T) []byte
		field string
	}{
		{
			name: "not json",
			blob: func(t *testing.T) []byte { return []byte("{not json") },
		},
		{
			name: "wrong version",
			blob: func(t *testing.T) []byte {
				data, err := JSONCodec{}.Marshal(State{Version: 7, Market: validMarket})
				require.NoError(t, err)
				return data
			},
		},
		{
			name: "negative cash",
			blob: func(t *testing.T) []byte {
				data, err := JSONCodec{}.Marshal(State{
					Version:   StateVersion,
					Market:    validMarket,
					Portfolio: portfolio.Snapshot{Cash: decimal.NewFromInt(-1), StartingCash: decimal.NewFromInt(100000)},
				})
				require.NoError(t, err)
				return data
			},
		},
		{
			name: "unknown regime",
			blob: func(t *testing.T) []byte {
				data, err := JSONCodec{}.Marshal(State{
					Version:   StateVersion,
					Market:    market_regime.MarketState{Regime: "crash", VIX: 20},
					Portfolio: portfolio.Snapshot{Cash: decimal.NewFromInt(5), StartingCash: decimal.NewFromInt(5)},
				})
				require.NoError(t, err)
				return data
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			require.NoError(t, store.Save(ctx, tt.blob(t)))

			w := newWorld(t, 5)
			populate(t, w)
			before := w.ledger.Snapshot()

			err := NewService(store, JSONCodec{}, w.controller, w.ledger, nil, zerolog.Nop()).Load(ctx)

			var loadErr *domain.StateLoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, domain.RegimeBull, w.controller.State().Regime)
			assert.True(t, before.Cash.Equal(w.ledger.Cash()))
			assert.Len(t, w.ledger.Transactions(), 1)
		})
	}
}

func TestService_RestoreFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, []byte("garbage")))
	rec := &recordedEvents{}

	w := newWorld(t, 2)
	populate(t, w)
	svc := NewService(store, JSONCodec{}, w.controller, w.ledger, newManager(rec), zerolog.Nop())

	assert.False(t, svc.Restore(ctx))
	assert.Equal(t, domain.RegimeSideways, w.controller.State().Regime)
	assert.True(t, w.ledger.Cash().Equal(decimal.NewFromInt(portfolio.DefaultStartingCash)))
	assert.Empty(t, w.ledger.Transactions())
	assert.Equal(t, []events.EventType{events.StateLoadFailed}, rec.types)
}

func TestService_RestoreFromSavedState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	src := newWorld(t, 3)
	populate(t, src)
	require.NoError(t, NewService(store, MsgpackCodec{}, src.controller, src.ledger, nil, zerolog.Nop()).Save(ctx))

	dst := newWorld(t, 4)
	rec := &recordedEvents{}
	assert.True(t, NewService(store, MsgpackCodec{}, dst.controller, dst.ledger, newManager(rec), zerolog.Nop()).Restore(ctx))
	assert.Equal(t, domain.RegimeBull, dst.controller.State().Regime)
	assert.Empty(t, rec.types)
}

func TestService_RestoreWithEmptyStore(t *testing.T) {
	rec := &recordedEvents{}
	w := newWorld(t, 8)
	svc := NewService(NewMemoryStore(), JSONCodec{}, w.controller, w.ledger, newManager(rec), zerolog.Nop())

	assert.False(t, svc.Restore(context.Background()))
	assert.Empty(t, rec.types, "an empty store is not a load failure")
}
