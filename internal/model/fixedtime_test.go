package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

func constPrice(p float64) func(types.StockCode) (float64, error) {
	return func(types.StockCode) (float64, error) { return p, nil }
}

func TestFixedTimeBuysThenSellsAtConfiguredTimes(t *testing.T) {
	m := NewFixedTime(FixedTimeConfig{Stock: "005930", BuyTimeHHMM: 930, SellTimeHHMM: 1500, Qty: 10})
	ctx := context.Background()

	order, err := m.OnEvent(ctx, Bundle{Ts: 202306010900, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.Nil(t, order)

	order, err = m.OnEvent(ctx, Bundle{Ts: 202306010930, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideBuy, order.Side)

	order, err = m.OnEvent(ctx, Bundle{Ts: 202306011000, PriceAt: constPrice(105)})
	require.NoError(t, err)
	require.Nil(t, order)

	order, err = m.OnEvent(ctx, Bundle{Ts: 202306011500, PriceAt: constPrice(110)})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, types.SideSell, order.Side)
	require.Equal(t, 110.0, order.Price)
}

func TestFixedTimeResetReturnsToIdle(t *testing.T) {
	m := NewFixedTime(FixedTimeConfig{Stock: "005930", BuyTimeHHMM: 930, SellTimeHHMM: 1500, Qty: 10})
	ctx := context.Background()

	_, err := m.OnEvent(ctx, Bundle{Ts: 202306010930, PriceAt: constPrice(100)})
	require.NoError(t, err)
	require.Equal(t, fixedHeld, m.state)

	require.NoError(t, m.ResetForNewDay(ctx, 20230602))
	require.Equal(t, fixedIdle, m.state)
}
