package model

import (
	"context"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

// FixedTimeConfig configures the Fixed-time reference strategy: buy a
// single stock at a configured clock time, sell it at another.
type FixedTimeConfig struct {
	Stock        types.StockCode
	BuyTimeHHMM  int
	SellTimeHHMM int
	Qty          uint32
}

type fixedTimeState string

const (
	fixedIdle   fixedTimeState = "idle"
	fixedHeld   fixedTimeState = "held"
	fixedClosed fixedTimeState = "closed"
)

// FixedTime implements the buy-at-HHMM / sell-at-HHMM reference strategy.
// States: Idle -> Held -> Closed.
type FixedTime struct {
	cfg   FixedTimeConfig
	state fixedTimeState
}

// NewFixedTime builds a FixedTime strategy starting in the Idle state.
func NewFixedTime(cfg FixedTimeConfig) *FixedTime {
	return &FixedTime{cfg: cfg, state: fixedIdle}
}

func (m *FixedTime) ID() string { return "fixed_time" }

func (m *FixedTime) OnStart(ctx context.Context) error { return nil }

func (m *FixedTime) OnEnd(ctx context.Context) error { return nil }

// ResetForNewDay returns to Idle. It does not close a position left open
// from the prior day, and the Runner has no end-of-day flatten step.
func (m *FixedTime) ResetForNewDay(ctx context.Context, date int) error {
	m.state = fixedIdle
	return nil
}

func (m *FixedTime) OnEvent(ctx context.Context, b Bundle) (*types.Order, error) {
	t := hhmm(b.Ts)

	switch m.state {
	case fixedIdle:
		if t < m.cfg.BuyTimeHHMM {
			return nil, nil
		}
		price, err := b.PriceAt(m.cfg.Stock)
		if err != nil {
			return nil, err
		}
		m.state = fixedHeld
		return &types.Order{Ts: b.Ts, Stock: m.cfg.Stock, Side: types.SideBuy, Qty: m.cfg.Qty, Price: price, Strategy: m.ID()}, nil

	case fixedHeld:
		if t < m.cfg.SellTimeHHMM {
			return nil, nil
		}
		price, err := b.PriceAt(m.cfg.Stock)
		if err != nil {
			return nil, err
		}
		m.state = fixedClosed
		return &types.Order{Ts: b.Ts, Stock: m.cfg.Stock, Side: types.SideSell, Qty: m.cfg.Qty, Price: price, Strategy: m.ID()}, nil
	}

	return nil, nil
}
