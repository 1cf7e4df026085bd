package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

func openTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndReadEvents(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []domain.EventKind{domain.EventInfo, domain.EventPending, domain.EventSuccess} {
		require.NoError(t, s.SaveEvent(ctx, domain.LogEvent{
			Kind:    kind,
			Message: "event " + string(kind),
			Amount:  float64(i),
			At:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventSuccess, events[0].Kind, "newest first")
	assert.Equal(t, domain.EventPending, events[1].Kind)
}

func TestRecentEventsDefaultLimit(t *testing.T) {
	s := openTestStorage(t)

	events, err := s.RecentEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSaveExecutionUpsert(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	res := domain.ExecutionResult{
		OrderID:   "order-1",
		AmountUSD: 75,
		Market:    "Rain tomorrow?",
		Outcome:   domain.OutcomeYes,
		Side:      domain.SideBuy,
		Simulated: true,
		At:        time.Now(),
	}
	require.NoError(t, s.SaveExecution(ctx, res))

	// Same order id with a late tx hash must update, not duplicate.
	res.TxHash = "0xfinal"
	require.NoError(t, s.SaveExecution(ctx, res))

	var count int
	var txHash string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(tx_hash) FROM executions WHERE order_id = ?`, "order-1",
	).Scan(&count, &txHash))
	assert.Equal(t, 1, count)
	assert.Equal(t, "0xfinal", txHash)
}

func TestPruneDropsStaleEvents(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEvent(ctx, domain.LogEvent{
		Kind:    domain.EventInfo,
		Message: "ancient",
		At:      time.Now().Add(-30 * 24 * time.Hour),
	}))
	require.NoError(t, s.SaveEvent(ctx, domain.LogEvent{
		Kind:    domain.EventInfo,
		Message: "fresh",
		At:      time.Now(),
	}))

	s.pruneOld(ctx)

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Message)
}
