package broker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/execution"
	"github.com/nitinkhare/stockrs-go/internal/journal"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "trading.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	pf := types.NewPortfolio(1_000_000)
	backend := execution.NewBacktest(pf, execution.BacktestConfig{BuyFeeRate: 0.001, SellFeeRate: 0.001})
	return New(backend, j)
}

func TestSubmitRecordsTradeInJournal(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	order := types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Strategy: "test"}
	trade, err := b.Submit(ctx, order)
	require.NoError(t, err)
	require.Equal(t, types.StockCode("005930"), trade.Stock)

	trades, err := b.journal.TradesOnDate(ctx, trade.Date)
	require.NoError(t, err)
	require.Len(t, trades, 1)
}

func TestSubmitRejectsInvalidOrder(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	_, err := b.Submit(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 0, Price: 100})
	require.Error(t, err)
}

func TestSubmitDoesNotJournalRejectedExecution(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	_, err := b.Submit(ctx, types.Order{Ts: 202306010930, Stock: "005930", Side: types.SideSell, Qty: 5, Price: 100, Strategy: "test"})
	require.Error(t, err)

	trades, err := b.journal.TradesOnDate(ctx, "2023-06-01")
	require.NoError(t, err)
	require.Empty(t, trades)
}
