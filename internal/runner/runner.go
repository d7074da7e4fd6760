// Package runner owns the engine's lifecycle: it wires Calendar,
// TimeService, MarketStore, Predictor, Broker, Journal, Model, and the risk
// layer together and drives the single-threaded event loop described in
// section 4.10/5 — advance the cursor, consult the Model, execute at most
// one Order, journal the result, repeat until the cursor passes end_date or
// a fatal error stops the run.
package runner

import (
	"context"
	"time"

	"github.com/phuslu/log"

	"github.com/nitinkhare/stockrs-go/internal/broker"
	"github.com/nitinkhare/stockrs-go/internal/calendar"
	"github.com/nitinkhare/stockrs-go/internal/feature"
	"github.com/nitinkhare/stockrs-go/internal/journal"
	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/model"
	"github.com/nitinkhare/stockrs-go/internal/risk"
	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/timeservice"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// equitySource is implemented by ExecutionBackend variants that expose an
// in-process mark-to-market and the current position size for a stock —
// today only *execution.Backtest. Real/Paper backends have no local
// position cache, so the Runner falls back to Broker.Assets for equity and
// treats currentQty as unknown (0) when sizing the single-stock risk check;
// this slightly under-counts exposure in live mode.
type equitySource interface {
	Equity(markPrice func(types.StockCode) float64) float64
	HoldingQty(stock types.StockCode) uint32
}

// Runner owns every component for the lifetime of one run.
type Runner struct {
	cal    *calendar.Calendar
	ts     *timeservice.Service
	market *marketstore.Store
	engine *feature.Engine
	broker *broker.Broker
	equity equitySource // nil for backends without a local position cache
	j      *journal.Journal
	mdl    model.Model
	pred   model.Predictor
	risk   *risk.Manager
	cb     *risk.CircuitBreaker
	logger *log.Logger

	stopCh chan struct{}
}

// Config gathers the already-constructed collaborators a Runner drives.
// Equity, Risk, Breaker, and Logger may be left zero-valued.
type Config struct {
	Calendar  *calendar.Calendar
	Time      *timeservice.Service
	Market    *marketstore.Store
	Engine    *feature.Engine
	Broker    *broker.Broker
	Equity    equitySource
	Journal   *journal.Journal
	Model     model.Model
	Predictor model.Predictor
	Risk      *risk.Manager
	Breaker   *risk.CircuitBreaker
	Logger    *log.Logger
}

// New builds a Runner from cfg.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Runner{
		cal:    cfg.Calendar,
		ts:     cfg.Time,
		market: cfg.Market,
		engine: cfg.Engine,
		broker: cfg.Broker,
		equity: cfg.Equity,
		j:      cfg.Journal,
		mdl:    cfg.Model,
		pred:   cfg.Predictor,
		risk:   cfg.Risk,
		cb:     cfg.Breaker,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Stop requests cooperative shutdown: the loop checks this once per event,
// matching the "cooperative stop flag polled once per event" contract.
func (r *Runner) Stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

// dayState tracks the trading date the loop is currently inside, so
// overview rows are inserted/finalized exactly at day boundaries.
type dayState struct {
	date    int
	dateStr string
}

// Run drives the event loop until the cursor passes end_date, a fatal
// error occurs, or Stop is called. on_start/on_end bracket the run exactly
// once; on_end always runs, even when the loop stops early, matching "each
// termination path runs on_end on all components in reverse start order".
func (r *Runner) Run(ctx context.Context) error {
	if err := r.mdl.OnStart(ctx); err != nil {
		return stockerr.Wrap(stockerr.KindGeneral, "runner", "on_start", err)
	}
	defer func() {
		if err := r.onEnd(ctx); err != nil {
			r.logger.Error().Err(err).Msg("runner: on_end failed")
		}
	}()

	var day dayState

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopCh:
			return nil
		default:
		}

		ev, horizonDone, err := r.ts.Advance(ctx)
		if err != nil {
			return stockerr.Wrap(stockerr.KindTime, "runner", "advance", err)
		}
		if horizonDone {
			return nil
		}

		if ev.DayChanged {
			if err := r.mdl.ResetForNewDay(ctx, ev.Date); err != nil {
				return stockerr.Wrap(stockerr.KindGeneral, "runner", "reset_for_new_day", err)
			}
			openEquity, err := r.markEquity(ctx, ev.Ts)
			if err != nil {
				return stockerr.Wrap(stockerr.KindBalanceInquiry, "runner", "opening equity", err)
			}
			day = dayState{date: ev.Date, dateStr: dateStr(ev.Date)}
			if err := r.j.InsertOverview(ctx, day.dateStr, openEquity); err != nil {
				return stockerr.Wrap(stockerr.KindDatabase, "runner", "overview_insert", err)
			}
		}

		bundle, err := r.buildBundle(ctx, ev)
		if err != nil {
			return stockerr.Wrap(stockerr.KindGeneral, "runner", "build bundle", err)
		}

		order, err := r.mdl.OnEvent(ctx, bundle)
		if err != nil {
			return stockerr.Wrap(stockerr.KindGeneral, "runner", "model.on_event", err)
		}

		var volumeDelta int
		var turnoverDelta float64
		if order != nil {
			volumeDelta, turnoverDelta = r.submit(ctx, *order, ev.Ts)
		}

		equity, err := r.markEquity(ctx, ev.Ts)
		if err != nil {
			return stockerr.Wrap(stockerr.KindBalanceInquiry, "runner", "mark equity", err)
		}
		if err := r.j.UpdateOverview(ctx, day.dateStr, equity, volumeDelta, turnoverDelta); err != nil {
			return stockerr.Wrap(stockerr.KindDatabase, "runner", "overview_update", err)
		}

		if ev.EndOfDay {
			if err := r.j.Finalize(ctx, day.dateStr); err != nil {
				return stockerr.Wrap(stockerr.KindDatabase, "runner", "overview_finalize", err)
			}
		}
	}
}

// submit gates a non-nil Order through the circuit breaker and risk
// Manager before handing it to the Broker, then records the outcome on the
// circuit breaker. Returns the (qty, notional) delta to fold into this
// event's overview row; a rejected or failed order contributes nothing.
func (r *Runner) submit(ctx context.Context, order types.Order, ts int64) (int, float64) {
	if order.Side == types.SideBuy && r.cb != nil && r.cb.IsTripped() {
		r.logger.Warn().Str("stock", string(order.Stock)).Str("reason", r.cb.TripReason()).Msg("runner: order skipped, circuit breaker tripped")
		return 0, 0
	}

	if order.Side == types.SideBuy && r.risk != nil {
		equity, currentQty, err := r.riskInputs(ctx, order.Stock, ts)
		if err != nil {
			r.logger.Warn().Err(err).Msg("runner: risk inputs unavailable, order skipped")
			return 0, 0
		}
		result := r.risk.Validate(order, equity, currentQty)
		if !result.Approved {
			for _, rej := range result.Rejections {
				r.logger.Warn().Str("stock", string(order.Stock)).Str("rule", rej.Rule).Str("reason", rej.Message).Msg("runner: order rejected by risk management")
			}
			return 0, 0
		}
	}

	trade, err := r.broker.Submit(ctx, order)
	if err != nil {
		if r.cb != nil {
			r.cb.RecordFailure(err.Error())
		}
		r.logger.Warn().Err(err).Str("stock", string(order.Stock)).Str("side", string(order.Side)).Msg("runner: order failed")
		return 0, 0
	}
	if r.cb != nil {
		r.cb.RecordSuccess()
	}
	return int(trade.Qty), trade.Price * float64(trade.Qty)
}

func (r *Runner) riskInputs(ctx context.Context, stock types.StockCode, ts int64) (equity float64, currentQty uint32, err error) {
	if r.equity != nil {
		return r.equity.Equity(r.markPriceFunc(ts)), r.equity.HoldingQty(stock), nil
	}
	assets, err := r.broker.Assets(ctx)
	if err != nil {
		return 0, 0, err
	}
	return assets.TotalAsset, 0, nil
}

func (r *Runner) markEquity(ctx context.Context, ts int64) (float64, error) {
	if r.equity != nil {
		return r.equity.Equity(r.markPriceFunc(ts)), nil
	}
	assets, err := r.broker.Assets(ctx)
	if err != nil {
		return 0, err
	}
	return assets.TotalAsset, nil
}

// markPriceFunc returns a per-event lookup for the equitySource: a stock
// with no bar at this minute marks at 0 rather than erroring, since a
// momentary data gap for one idle holding must not abort the whole
// equity computation.
func (r *Runner) markPriceFunc(ts int64) func(types.StockCode) float64 {
	return func(stock types.StockCode) float64 {
		price, err := r.market.PriceAt(stock, ts)
		if err != nil {
			return 0
		}
		return price
	}
}

func (r *Runner) buildBundle(ctx context.Context, ev timeservice.Event) (model.Bundle, error) {
	assets, err := r.broker.Assets(ctx)
	if err != nil {
		return model.Bundle{}, err
	}
	priceAt := func(stock types.StockCode) (float64, error) {
		return r.market.PriceAt(stock, ev.Ts)
	}
	return model.Bundle{
		Ts:            ev.Ts,
		Date:          ev.Date,
		Market:        r.market,
		Cal:           r.cal,
		Engine:        r.engine,
		Pred:          r.pred,
		AvailableCash: assets.AvailableCash,
		PriceAt:       priceAt,
	}, nil
}

// onEnd runs every component's on_end in reverse start order, collecting
// (not stopping at) the first failure so every component gets a chance to
// release its resources.
func (r *Runner) onEnd(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(r.mdl.OnEnd(ctx))
	if r.j != nil {
		record(r.j.Close())
	}
	if r.market != nil {
		record(r.market.Close())
	}
	return firstErr
}

func dateStr(ymd int) string {
	return time.Date(ymd/10000, time.Month((ymd/100)%100), ymd%100, 0, 0, 0, 0, time.Local).Format("2006-01-02")
}
