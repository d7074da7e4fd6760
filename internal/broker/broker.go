// Package broker is the thin layer between a Model's order intent and an
// ExecutionBackend: validate, forward, record. It carries no strategy or
// risk logic of its own and no state beyond the handles it was built
// with — every call is independent of every other, matching the design
// rules the teacher's own broker package states verbatim.
package broker

import (
	"context"

	"github.com/nitinkhare/stockrs-go/internal/execution"
	"github.com/nitinkhare/stockrs-go/internal/journal"
	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// Broker validates an Order, forwards it to the active ExecutionBackend,
// and journals the resulting Trade. It does not retry: a rejected or
// failed order is returned to the caller (the Model, via the Runner) to
// decide what to do next.
type Broker struct {
	backend execution.Backend
	journal *journal.Journal
}

// New builds a Broker over the given backend and journal. Only one backend
// is active per Broker instance, matching the "only one broker active at a
// time" rule.
func New(backend execution.Backend, j *journal.Journal) *Broker {
	return &Broker{backend: backend, journal: j}
}

// Submit validates order, places it, and records the resulting Trade. On
// any failure (validation, execution, or journal write) the order is
// considered not filled; callers must not assume partial side effects.
func (b *Broker) Submit(ctx context.Context, order types.Order) (types.Trade, error) {
	if err := order.Validate(); err != nil {
		return types.Trade{}, stockerr.Wrap(stockerr.KindOrderExecution, "broker", "validate order", err)
	}

	trade, err := b.backend.Place(ctx, order)
	if err != nil {
		return types.Trade{}, err
	}

	if err := b.journal.RecordTrade(ctx, trade); err != nil {
		return types.Trade{}, err
	}

	return trade, nil
}

// Assets proxies to the active backend's account snapshot.
func (b *Broker) Assets(ctx context.Context) (types.AssetInfo, error) {
	return b.backend.Assets(ctx)
}

// Cancel proxies to the active backend's cancellation path.
func (b *Broker) Cancel(ctx context.Context, orderID string) error {
	return b.backend.Cancel(ctx, orderID)
}
