package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

func newTestBacktest(cash float64) *Backtest {
	pf := types.NewPortfolio(cash)
	cfg := BacktestConfig{BuyFeeRate: 0.001, SellFeeRate: 0.001, BuySlippageRate: 0, SellSlippageRate: 0}
	return NewBacktest(pf, cfg)
}

func TestBuyUpdatesAveragePrice(t *testing.T) {
	bt := newTestBacktest(1_000_000)
	ctx := context.Background()

	_, err := bt.Place(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Strategy: "s"})
	require.NoError(t, err)
	_, err = bt.Place(ctx, types.Order{Ts: 2000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 200, Strategy: "s"})
	require.NoError(t, err)

	h := bt.pf.Holdings["005930"]
	require.Equal(t, uint32(20), h.Qty)
	require.InDelta(t, 150.0, h.AvgPrice, 1e-9)
}

func TestPartialSellDoesNotChangeAvgPrice(t *testing.T) {
	bt := newTestBacktest(1_000_000)
	ctx := context.Background()

	_, err := bt.Place(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Strategy: "s"})
	require.NoError(t, err)

	trade, err := bt.Place(ctx, types.Order{Ts: 2000, Stock: "005930", Side: types.SideSell, Qty: 4, Price: 120, Strategy: "s"})
	require.NoError(t, err)
	require.InDelta(t, 100.0, trade.AvgPrice, 1e-9)

	h := bt.pf.Holdings["005930"]
	require.Equal(t, uint32(6), h.Qty)
	require.InDelta(t, 100.0, h.AvgPrice, 1e-9)
}

func TestSellRejectedWhenHoldingsInsufficient(t *testing.T) {
	bt := newTestBacktest(1_000_000)
	ctx := context.Background()

	_, err := bt.Place(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideSell, Qty: 1, Price: 100, Strategy: "s"})
	require.Error(t, err)
}

func TestBuyRejectedWhenCashInsufficient(t *testing.T) {
	bt := newTestBacktest(50)
	ctx := context.Background()

	_, err := bt.Place(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Strategy: "s"})
	require.Error(t, err)
}

func TestSellToFlatResetsAvgPrice(t *testing.T) {
	bt := newTestBacktest(1_000_000)
	ctx := context.Background()

	_, err := bt.Place(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Strategy: "s"})
	require.NoError(t, err)
	_, err = bt.Place(ctx, types.Order{Ts: 2000, Stock: "005930", Side: types.SideSell, Qty: 10, Price: 120, Strategy: "s"})
	require.NoError(t, err)

	_, ok := bt.pf.Holdings["005930"]
	require.True(t, ok)
	require.Equal(t, uint32(0), bt.pf.Holdings["005930"].Qty)
	require.Equal(t, 0.0, bt.pf.Holdings["005930"].AvgPrice)
}

func TestCancelAlwaysFails(t *testing.T) {
	bt := newTestBacktest(1_000_000)
	require.Error(t, bt.Cancel(context.Background(), "backtest_005930_1000"))
}

// TestBuyThenHoldScenario matches section 8 scenario 1 verbatim.
func TestBuyThenHoldScenario(t *testing.T) {
	pf := types.NewPortfolio(10_000_000)
	cfg := BacktestConfig{BuyFeeRate: 0.00015, SellFeeRate: 0.00015, BuySlippageRate: 0.0001, SellSlippageRate: 0.0001}
	bt := NewBacktest(pf, cfg)

	trade, err := bt.Place(context.Background(), types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 70_000, Strategy: "s"})
	require.NoError(t, err)

	require.InDelta(t, 9_299_825.0, bt.pf.Cash, 1e-6)
	h := bt.pf.Holdings["005930"]
	require.Equal(t, uint32(10), h.Qty)
	require.InDelta(t, 70_000.0, h.AvgPrice, 1e-9)
	require.InDelta(t, 700_000.0, h.TotalCost, 1e-9)
	require.InDelta(t, 105.0, trade.Fee, 1e-6)
	require.InDelta(t, -105.0, trade.Profit, 1e-6) // buy profit = -fee
}

// TestPartialSellScenario matches section 8 scenario 2 verbatim, continuing
// from scenario 1's post-buy state.
func TestPartialSellScenario(t *testing.T) {
	pf := types.NewPortfolio(9_299_825.0)
	pf.Holdings["005930"] = types.Holding{Qty: 10, AvgPrice: 70_000, TotalCost: 700_000}
	cfg := BacktestConfig{BuyFeeRate: 0.00015, SellFeeRate: 0.00015, BuySlippageRate: 0.0001, SellSlippageRate: 0.0001}
	bt := NewBacktest(pf, cfg)

	trade, err := bt.Place(context.Background(), types.Order{Ts: 2000, Stock: "005930", Side: types.SideSell, Qty: 4, Price: 72_000, Strategy: "s"})
	require.NoError(t, err)

	h := bt.pf.Holdings["005930"]
	require.Equal(t, uint32(6), h.Qty)
	require.InDelta(t, 70_000.0, h.AvgPrice, 1e-9)
	require.InDelta(t, 420_000.0, h.TotalCost, 1e-9)
	require.InDelta(t, 9_299_825.0+287_928.0, bt.pf.Cash, 1e-6)
	require.InDelta(t, 43.2, trade.Fee, 1e-9)
}

// TestInsufficientBalanceRejectScenario matches section 8 scenario 3: the
// Portfolio is left completely unchanged on rejection.
func TestInsufficientBalanceRejectScenario(t *testing.T) {
	pf := types.NewPortfolio(1_000)
	cfg := BacktestConfig{}
	bt := NewBacktest(pf, cfg)

	_, err := bt.Place(context.Background(), types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 1, Price: 2_000, Strategy: "s"})
	require.Error(t, err)
	require.Equal(t, 1_000.0, bt.pf.Cash)
	require.Empty(t, bt.pf.Holdings)
}

// TestReplayingTradesReconstructsTerminalPortfolio matches section 8's
// round-trip law: replaying the same Order sequence through a fresh
// Portfolio reconstructs the same terminal cash/holdings state.
func TestReplayingTradesReconstructsTerminalPortfolio(t *testing.T) {
	cfg := BacktestConfig{BuyFeeRate: 0.00015, SellFeeRate: 0.00015, BuySlippageRate: 0.0001, SellSlippageRate: 0.0001}
	orders := []types.Order{
		{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 70_000, Strategy: "s"},
		{Ts: 2000, Stock: "005930", Side: types.SideBuy, Qty: 5, Price: 71_000, Strategy: "s"},
		{Ts: 3000, Stock: "005930", Side: types.SideSell, Qty: 4, Price: 72_000, Strategy: "s"},
		{Ts: 4000, Stock: "000660", Side: types.SideBuy, Qty: 20, Price: 30_000, Strategy: "s"},
	}

	run := func() *types.Portfolio {
		pf := types.NewPortfolio(50_000_000)
		bt := NewBacktest(pf, cfg)
		for _, o := range orders {
			_, err := bt.Place(context.Background(), o)
			require.NoError(t, err)
		}
		return pf
	}

	a, b := run(), run()
	require.InDelta(t, a.Cash, b.Cash, 1e-9)
	require.Equal(t, a.Holdings, b.Holdings)
}

func TestAssetsReflectsCashAndHoldings(t *testing.T) {
	bt := newTestBacktest(1_000_000)
	ctx := context.Background()

	_, err := bt.Place(ctx, types.Order{Ts: 1000, Stock: "005930", Side: types.SideBuy, Qty: 10, Price: 100, Strategy: "s"})
	require.NoError(t, err)

	assets, err := bt.Assets(ctx)
	require.NoError(t, err)
	require.InDelta(t, 1000.0, assets.SecuritiesValue, 1e-6)
	require.InDelta(t, assets.AvailableCash+assets.SecuritiesValue, assets.TotalAsset, 1e-6)
}
