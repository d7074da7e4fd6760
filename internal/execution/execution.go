// Package execution implements the three ExecutionBackend variants — Real,
// Paper, and Backtest — behind one interface, mirroring the teacher's
// broker.Broker abstraction (one contract, swappable implementation, no
// strategy logic inside any backend).
package execution

import (
	"context"

	"github.com/nitinkhare/stockrs-go/internal/types"
)

// Backend is the single contract the Broker drives regardless of mode.
// Implementations own all account state; callers never reach past this
// interface into broker internals.
type Backend interface {
	// Place submits order for immediate execution and returns the filled
	// Trade record, or an error if the order is rejected (insufficient
	// funds/holdings) or the backend's transport fails.
	Place(ctx context.Context, order types.Order) (types.Trade, error)

	// Assets returns the current cash/securities/total snapshot.
	Assets(ctx context.Context) (types.AssetInfo, error)

	// Cancel cancels a previously placed order by ID, where supported.
	Cancel(ctx context.Context, orderID string) error
}
