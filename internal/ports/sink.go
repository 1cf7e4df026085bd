package ports

import (
	"context"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// EventSink receives the engine's append-only event stream. Implementations
// must not block the tick body; slow consumers drop or buffer internally.
type EventSink interface {
	Append(ev domain.LogEvent)
}

// Storage persists events and executed copies for later inspection.
type Storage interface {
	SaveEvent(ctx context.Context, ev domain.LogEvent) error
	SaveExecution(ctx context.Context, res domain.ExecutionResult) error

	// RecentEvents returns the newest events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]domain.LogEvent, error)

	Close() error
}

// Advisor is the external trade-history summarization service. Its
// unavailability must never block the trading loop.
type Advisor interface {
	Summarize(ctx context.Context, fills []domain.Fill) (domain.Advice, error)
}
