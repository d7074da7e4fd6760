// Package model holds the strategy state machines: pure decision engines
// that turn one event's Bundle into at most one Order, matching the
// teacher's own strategy framework ("AI advises, rules decide" — a Model
// never places orders itself, it only proposes them to the Broker).
package model

import (
	"context"

	"github.com/nitinkhare/stockrs-go/internal/calendar"
	"github.com/nitinkhare/stockrs-go/internal/feature"
	"github.com/nitinkhare/stockrs-go/internal/marketstore"
	"github.com/nitinkhare/stockrs-go/internal/predictor"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// Predictor is the slice of *predictor.Predictor a Model needs: pick the
// best candidate for an asof date. Kept as a narrow local interface so
// strategies are testable against a fake without standing up a real
// MarketStore/FeatureEngine/Backend chain.
type Predictor interface {
	Predict(ctx context.Context, candidates []types.StockCode, asof int) (predictor.Candidate, error)
}

// Bundle is everything a Model needs to decide on one event. The Runner
// builds one per event; Models must treat it as read-only.
type Bundle struct {
	Ts            int64 // YYYYMMDDHHMM
	Date          int   // YYYYMMDD
	Market        *marketstore.Store
	Cal           *calendar.Calendar
	Engine        *feature.Engine
	Pred          Predictor
	AvailableCash float64
	PriceAt       func(stock types.StockCode) (float64, error)
}

// Model is the strategy state machine interface every reference strategy
// implements. Evaluate must be deterministic given the same Bundle and
// internal state — no I/O beyond what Bundle already hands it.
type Model interface {
	// ID identifies the strategy, stamped onto every Order it produces.
	ID() string

	// OnStart runs once before the first event.
	OnStart(ctx context.Context) error

	// OnEvent consumes one event and optionally returns an Order. A nil
	// Order means "do nothing this event".
	OnEvent(ctx context.Context, b Bundle) (*types.Order, error)

	// OnEnd runs once after the last event, in reverse start order with
	// every other component.
	OnEnd(ctx context.Context) error

	// ResetForNewDay clears any per-day state; called by the Runner the
	// first time it observes a new trading date.
	ResetForNewDay(ctx context.Context, date int) error
}

func hhmm(ts int64) int {
	return int(ts % 10000)
}
