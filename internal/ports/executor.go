package ports

import (
	"context"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// OrderExecutor converts an accepted signal into a submitted (or
// simulated) exchange order.
type OrderExecutor interface {
	// Execute sizes, signs, and submits a copy of the signal. Failures
	// are reported in the result, never by stopping the engine.
	Execute(ctx context.Context, sig domain.TradeSignal) domain.ExecutionResult

	// CancelOrder cancels a previously placed order by exchange order id.
	CancelOrder(ctx context.Context, orderID string) error

	// CancelAll cancels every open order owned by the executing wallet.
	CancelAll(ctx context.Context) error
}
