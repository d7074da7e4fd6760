package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trading.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndQueryTrades(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	trade := types.Trade{Date: "2023-06-01", Time: "09:30:00", Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Fee: 1, Strategy: "s", AvgPrice: 100}
	require.NoError(t, j.RecordTrade(ctx, trade))

	trades, err := j.TradesOnDate(ctx, "2023-06-01")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, types.StockCode("005930"), trades[0].Stock)
}

func TestOverviewLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.InsertOverview(ctx, "2023-06-01", 100))
	require.NoError(t, j.InsertOverview(ctx, "2023-06-01", 999)) // idempotent, second insert ignored

	require.NoError(t, j.UpdateOverview(ctx, "2023-06-01", 110, 10, 1100))
	require.NoError(t, j.UpdateOverview(ctx, "2023-06-01", 90, 5, 450))

	trade := types.Trade{Date: "2023-06-01", Time: "09:30:00", Stock: "005930", Side: types.SideSell, Qty: 10, Price: 110, Fee: 1, Strategy: "s", AvgPrice: 100, Profit: 99}
	require.NoError(t, j.RecordTrade(ctx, trade))

	require.NoError(t, j.Finalize(ctx, "2023-06-01"))

	var high, low, profit, fee float64
	err := j.db.QueryRowContext(ctx, `SELECT high, low, profit, fee FROM overview WHERE date = ?`, "2023-06-01").Scan(&high, &low, &profit, &fee)
	require.NoError(t, err)
	require.Equal(t, 110.0, high)
	require.Equal(t, 90.0, low)
	require.Equal(t, -10.0, profit) // close(90) - open(100), per section 4.8
	require.Equal(t, 1.0, fee)
}

func TestLastOpenDateExcludesFinalized(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.InsertOverview(ctx, "2023-06-01", 100))
	require.NoError(t, j.Finalize(ctx, "2023-06-01"))

	_, ok, err := j.LastOpenDate(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, j.InsertOverview(ctx, "2023-06-02", 105))
	date, ok, err := j.LastOpenDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2023-06-02", date)
}

// TestFinalizeRoiIsPercentage matches section 8 scenario 5: two fills
// (turnover 1,000,000 and 500,000, fees 150 and 75) on a day that opens at
// 10,000,000 and closes at 10,050,000 equity.
func TestFinalizeRoiIsPercentage(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.InsertOverview(ctx, "2023-06-01", 10_000_000))
	require.NoError(t, j.UpdateOverview(ctx, "2023-06-01", 10_050_000, 2, 1_500_000))

	require.NoError(t, j.RecordTrade(ctx, types.Trade{Date: "2023-06-01", Time: "09:30:00", Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100_000, Fee: 150, Strategy: "s", Profit: -150}))
	require.NoError(t, j.RecordTrade(ctx, types.Trade{Date: "2023-06-01", Time: "10:00:00", Stock: "000660", Side: types.SideSell, Qty: 5, Price: 100_000, Fee: 75, Strategy: "s", Profit: 50_225}))

	require.NoError(t, j.Finalize(ctx, "2023-06-01"))

	var open, close, profit, fee, roi, turnover float64
	err := j.db.QueryRowContext(ctx, `SELECT open, close, profit, fee, roi, turnover FROM overview WHERE date = ?`, "2023-06-01").
		Scan(&open, &close, &profit, &fee, &roi, &turnover)
	require.NoError(t, err)
	require.Equal(t, 10_000_000.0, open)
	require.Equal(t, 10_050_000.0, close)
	require.Equal(t, 50_000.0, profit) // close - open, per section 4.8
	require.Equal(t, 225.0, fee)
	require.InDelta(t, 0.5, roi, 1e-9)
	require.Equal(t, 1_500_000.0, turnover)
}
