package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// BacktestConfig carries the fee/slippage rates applied to every fill,
// matching section 4.6's exact accounting policy.
type BacktestConfig struct {
	BuyFeeRate        float64
	SellFeeRate       float64
	BuySlippageRate   float64
	SellSlippageRate  float64
	AllowNegativeCash bool
}

// Backtest simulates fills against an in-memory Portfolio: every order
// fills at the requested price (slippage is charged against cash, not
// folded into the recorded fill price) or is rejected
// outright — no partial fills, no cancellation, matching the original
// source's backtest_api.rs semantics exactly (see DESIGN.md's Open
// Question decision on partial fills).
type Backtest struct {
	mu  sync.Mutex
	cfg BacktestConfig
	pf  *types.Portfolio
}

// NewBacktest creates a Backtest backend seeded with pf (owned by the
// caller's Runner for the lifetime of one run).
func NewBacktest(pf *types.Portfolio, cfg BacktestConfig) *Backtest {
	return &Backtest{pf: pf, cfg: cfg}
}

// Place fills order immediately using weighted-average-cost accounting:
// buys add to total_cost at the gross (pre-fee, pre-slippage) order
// amount; sells never change avg_price until the holding goes flat.
func (bt *Backtest) Place(_ context.Context, order types.Order) (types.Trade, error) {
	if err := order.Validate(); err != nil {
		return types.Trade{}, stockerr.Wrap(stockerr.KindOrderExecution, "execution.backtest", "validate order", err)
	}

	bt.mu.Lock()
	defer bt.mu.Unlock()

	switch order.Side {
	case types.SideBuy:
		return bt.fillBuy(order)
	case types.SideSell:
		return bt.fillSell(order)
	default:
		return types.Trade{}, stockerr.New(stockerr.KindOrderExecution, "execution.backtest", fmt.Sprintf("unknown side %q", order.Side))
	}
}

func (bt *Backtest) fillBuy(order types.Order) (types.Trade, error) {
	grossAmount := order.Price * float64(order.Qty)
	fee := grossAmount * bt.cfg.BuyFeeRate
	slippageCost := grossAmount * bt.cfg.BuySlippageRate
	totalDebit := grossAmount + fee + slippageCost

	if totalDebit > bt.pf.Cash && !bt.cfg.AllowNegativeCash {
		return types.Trade{}, stockerr.New(stockerr.KindBalanceInquiry, "execution.backtest", fmt.Sprintf("insufficient cash: need %.2f, have %.2f", totalDebit, bt.pf.Cash))
	}

	h := bt.pf.Holdings[order.Stock]
	newQty := h.Qty + order.Qty
	newTotalCost := h.TotalCost + grossAmount
	h.Qty = newQty
	h.TotalCost = newTotalCost
	h.AvgPrice = newTotalCost / float64(newQty)
	bt.pf.Holdings[order.Stock] = h
	bt.pf.Cash -= totalDebit

	// section 3: "profit for Buy = -fee"; roi is profit over the deployed
	// cost basis, expressed as a percentage.
	profit := -fee
	var roi float64
	if grossAmount != 0 {
		roi = profit / grossAmount * 100
	}
	return bt.recordTrade(order, fee, profit, roi), nil
}

func (bt *Backtest) fillSell(order types.Order) (types.Trade, error) {
	h, ok := bt.pf.Holdings[order.Stock]
	if !ok || h.Qty < order.Qty {
		return types.Trade{}, stockerr.New(stockerr.KindBalanceInquiry, "execution.backtest", fmt.Sprintf("insufficient holdings of %s: have %d, want %d", order.Stock, h.Qty, order.Qty))
	}

	grossAmount := order.Price * float64(order.Qty)
	fee := grossAmount * bt.cfg.SellFeeRate
	slippageCost := grossAmount * bt.cfg.SellSlippageRate
	proceeds := grossAmount - fee - slippageCost

	// section 3: "profit for Sell = (price - avg_price)*qty - fee" exactly
	// — slippage reduces the cash credit but is not part of the booked
	// profit figure, matching the documented formula verbatim.
	costBasis := h.AvgPrice * float64(order.Qty)
	profit := grossAmount - costBasis - fee
	var roi float64
	if costBasis != 0 {
		roi = profit / costBasis * 100
	}

	h.Qty -= order.Qty
	if h.Qty == 0 {
		delete(bt.pf.Holdings, order.Stock)
	} else {
		h.TotalCost = h.AvgPrice * float64(h.Qty)
		bt.pf.Holdings[order.Stock] = h
	}
	bt.pf.Cash += proceeds

	return bt.recordTrade(order, fee, profit, roi), nil
}

func (bt *Backtest) recordTrade(order types.Order, fee, profit, roi float64) types.Trade {
	h := bt.pf.Holdings[order.Stock]
	ts := time.UnixMilli(order.Ts)
	return types.Trade{
		Date:     ts.Format("2006-01-02"),
		Time:     ts.Format("15:04:05"),
		Stock:    order.Stock,
		Side:     order.Side,
		Qty:      order.Qty,
		Price:    order.Price,
		Fee:      fee,
		Strategy: order.Strategy,
		AvgPrice: h.AvgPrice,
		Profit:   profit,
		ROI:      roi,
	}
}

// Assets returns cash plus the sum of each holding's last booked cost
// basis valued at its stored average price — the Backtest backend has no
// independent mark price source, so Runner/Predictor code that needs a
// live mark should query MarketStore directly and call Portfolio.Equity.
func (bt *Backtest) Assets(_ context.Context) (types.AssetInfo, error) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	var securities float64
	for _, h := range bt.pf.Holdings {
		securities += h.AvgPrice * float64(h.Qty)
	}
	return types.AssetInfo{
		Ts:              time.Now().UnixMilli(),
		AvailableCash:   bt.pf.Cash,
		SecuritiesValue: securities,
		TotalAsset:      bt.pf.Cash + securities,
	}, nil
}

// Equity marks every holding at markPrice and returns cash plus the
// resulting securities value, for Runner/Journal code that has a live
// mark-price source (MarketStore) rather than the last booked cost basis.
func (bt *Backtest) Equity(markPrice func(types.StockCode) float64) float64 {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.pf.Equity(markPrice)
}

// HoldingQty returns the current held quantity of stock, 0 if none, for
// risk checks that size post-trade concentration against the existing
// position.
func (bt *Backtest) HoldingQty(stock types.StockCode) uint32 {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.pf.Holdings[stock].Qty
}

// Cancel is a no-op error: the Backtest backend fills every order
// synchronously inside Place, so there is never an open order to cancel.
func (bt *Backtest) Cancel(_ context.Context, orderID string) error {
	return stockerr.New(stockerr.KindOrderExecution, "execution.backtest", fmt.Sprintf("order %s already settled, cannot cancel", orderID))
}

// NextOrderID builds a synthetic backtest_<stock>_<ts> order ID. No code in
// this module calls it.
func NextOrderID(stock types.StockCode, ts int64) string {
	return fmt.Sprintf("backtest_%s_%d", stock, ts)
}
