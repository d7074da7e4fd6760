package model

import (
	"context"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// IntradayConfig configures the Intraday-prediction reference strategy: at
// EntryTimeHHMM it builds a candidate universe, asks the Predictor to pick
// one, sizes a position against the available cash, then manages
// stop-loss, a half-position take-profit, a post-take-profit trailing
// stop, and a forced flatten at LatestFlattenHHMM.
//
// The default universe (section 4.5 step 1) is the top CandidateTopN
// stocks by prior-day turnover, excluding ExcludeList. Setting
// CandidateTopN to 0 falls back to the fixed Candidates list instead —
// useful for tests and for callers that want to pin an explicit universe.
type IntradayConfig struct {
	Candidates        []types.StockCode
	CandidateTopN     int
	ExcludeList       []types.StockCode
	EntryTimeHHMM     int // default 930
	LatestFlattenHHMM int // default 1200
	StopLossPct       float64
	TakeProfitPct     float64
	TrailingStopPct   float64
	CashFraction      float64 // fraction of AvailableCash to deploy at entry, default 1.0
}

type intradayState string

const (
	waitingForEntry intradayState = "waiting_for_entry"
	holding         intradayState = "holding"
	partialSold     intradayState = "partial_sold"
	intradayClosed  intradayState = "closed"
)

// Intraday implements the entry-then-manage reference strategy. States:
// WaitingForEntry -> Holding -> PartialSold -> Closed.
type Intraday struct {
	cfg   IntradayConfig
	state intradayState

	stock      types.StockCode
	qty        uint32
	entryPrice float64
	highWater  float64
}

// NewIntraday builds an Intraday strategy, applying the documented
// defaults (entry 09:30, forced flatten 12:00, full-cash sizing) for any
// zero-valued field.
func NewIntraday(cfg IntradayConfig) *Intraday {
	if cfg.EntryTimeHHMM == 0 {
		cfg.EntryTimeHHMM = 930
	}
	if cfg.LatestFlattenHHMM == 0 {
		cfg.LatestFlattenHHMM = 1200
	}
	if cfg.CashFraction == 0 {
		cfg.CashFraction = 1.0
	}
	return &Intraday{cfg: cfg, state: waitingForEntry}
}

func (m *Intraday) ID() string { return "intraday_prediction" }

func (m *Intraday) OnStart(ctx context.Context) error { return nil }

func (m *Intraday) OnEnd(ctx context.Context) error { return nil }

// ResetForNewDay clears all per-position state. A position must already be
// flat by end of day; the forced flatten rule guarantees that.
func (m *Intraday) ResetForNewDay(ctx context.Context, date int) error {
	m.state = waitingForEntry
	m.stock = ""
	m.qty = 0
	m.entryPrice = 0
	m.highWater = 0
	return nil
}

func (m *Intraday) OnEvent(ctx context.Context, b Bundle) (*types.Order, error) {
	switch m.state {
	case waitingForEntry:
		return m.tryEnter(ctx, b)
	case holding:
		return m.manage(ctx, b, false)
	case partialSold:
		return m.manage(ctx, b, true)
	default:
		return nil, nil
	}
}

func (m *Intraday) tryEnter(ctx context.Context, b Bundle) (*types.Order, error) {
	if hhmm(b.Ts) < m.cfg.EntryTimeHHMM {
		return nil, nil
	}

	universe, err := m.universe(b)
	if err != nil {
		return nil, err
	}

	cand, err := b.Pred.Predict(ctx, universe, b.Date)
	if err != nil {
		return nil, err
	}

	price, err := b.PriceAt(cand.Stock)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, stockerr.New(stockerr.KindPriceInquiry, "model", "entry price is non-positive")
	}

	budget := b.AvailableCash * m.cfg.CashFraction
	qty := uint32(budget / price)
	if qty == 0 {
		m.state = intradayClosed
		return nil, nil
	}

	m.stock = cand.Stock
	m.qty = qty
	m.entryPrice = price
	m.highWater = price
	m.state = holding

	return &types.Order{Ts: b.Ts, Stock: cand.Stock, Side: types.SideBuy, Qty: qty, Price: price, Strategy: m.ID()}, nil
}

// universe builds the candidate set for today's entry decision: top
// CandidateTopN stocks by prior-day turnover with ExcludeList removed, or
// the fixed Candidates list when CandidateTopN is unset.
func (m *Intraday) universe(b Bundle) ([]types.StockCode, error) {
	if m.cfg.CandidateTopN <= 0 {
		return m.cfg.Candidates, nil
	}
	return b.Market.TopByTurnover(b.Date, m.cfg.CandidateTopN, m.cfg.ExcludeList)
}

func (m *Intraday) manage(ctx context.Context, b Bundle, afterPartial bool) (*types.Order, error) {
	price, err := b.PriceAt(m.stock)
	if err != nil {
		return nil, err
	}
	if price > m.highWater {
		m.highWater = price
	}

	if hhmm(b.Ts) >= m.cfg.LatestFlattenHHMM {
		return m.sellAll(b, price), nil
	}

	if !afterPartial {
		change := (price - m.entryPrice) / m.entryPrice

		if change <= -m.cfg.StopLossPct {
			return m.sellAll(b, price), nil
		}

		if change >= m.cfg.TakeProfitPct {
			half := m.qty / 2
			if half == 0 {
				half = m.qty
			}
			m.qty -= half
			m.state = partialSold
			m.highWater = price
			return &types.Order{Ts: b.Ts, Stock: m.stock, Side: types.SideSell, Qty: half, Price: price, Strategy: m.ID()}, nil
		}

		return nil, nil
	}

	trailChange := (price - m.highWater) / m.highWater
	if trailChange <= -m.cfg.TrailingStopPct {
		return m.sellAll(b, price), nil
	}

	return nil, nil
}

func (m *Intraday) sellAll(b Bundle, price float64) *types.Order {
	qty := m.qty
	m.state = intradayClosed
	m.qty = 0
	return &types.Order{Ts: b.Ts, Stock: m.stock, Side: types.SideSell, Qty: qty, Price: price, Strategy: m.ID()}
}
