package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

type scriptedCollector struct {
	mu      sync.Mutex
	batches []collectResult
	idx     int
	resets  int
}

type collectResult struct {
	signals []domain.TradeSignal
	err     error
}

func (c *scriptedCollector) Collect(_ context.Context) ([]domain.TradeSignal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx >= len(c.batches) {
		return nil, nil
	}
	b := c.batches[c.idx]
	c.idx++
	return b.signals, b.err
}

func (c *scriptedCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

type fakeExecutor struct {
	mu      sync.Mutex
	results []domain.ExecutionResult
	calls   []domain.TradeSignal
}

func (f *fakeExecutor) Execute(_ context.Context, sig domain.TradeSignal) domain.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sig)
	if len(f.results) == 0 {
		return domain.ExecutionResult{OrderID: "sim-1", Simulated: true, At: time.Now()}
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res
}

func (f *fakeExecutor) CancelOrder(context.Context, string) error { return nil }
func (f *fakeExecutor) CancelAll(context.Context) error           { return nil }

// blockingExecutor parks in Execute until released, recording what the
// execution context looked like at release time.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingExecutor) Execute(ctx context.Context, _ domain.TradeSignal) domain.ExecutionResult {
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()
	if b.ctxErr != nil {
		return domain.ExecutionResult{Err: b.ctxErr.Error(), At: time.Now()}
	}
	return domain.ExecutionResult{OrderID: "slow-1", Simulated: true, At: time.Now()}
}

func (b *blockingExecutor) CancelOrder(context.Context, string) error { return nil }
func (b *blockingExecutor) CancelAll(context.Context) error           { return nil }

type fakeProvider struct {
	positions []domain.Position
	err       error
}

func (f *fakeProvider) FetchPositions(context.Context, string, string) ([]domain.Position, error) {
	return f.positions, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.LogEvent
}

func (r *recordingSink) Append(ev domain.LogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) byKind(kind domain.EventKind) []domain.LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LogEvent
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buySignal(usd float64) domain.TradeSignal {
	return domain.TradeSignal{
		Channel:     domain.ChannelPolling,
		MarketLabel: "Rain tomorrow?",
		TokenID:     "42",
		Outcome:     domain.OutcomeYes,
		Side:        domain.SideBuy,
		SizeUSD:     usd,
		DedupKey:    "poll:1",
	}
}

func newTestEngine(collector *scriptedCollector, exec *fakeExecutor, sink *recordingSink) *Engine {
	return New(
		Config{Target: "0x1", Interval: time.Hour, MinOrderUSD: 10},
		collector, exec, &fakeProvider{}, sink, nil, quietLogger(),
	)
}

func TestTickExecutesAcceptedSignal(t *testing.T) {
	collector := &scriptedCollector{batches: []collectResult{
		{signals: []domain.TradeSignal{buySignal(50)}},
	}}
	exec := &fakeExecutor{results: []domain.ExecutionResult{{
		OrderID:   "abc",
		AmountUSD: 75,
		Market:    "Rain tomorrow?",
		Outcome:   domain.OutcomeYes,
		Side:      domain.SideBuy,
		Simulated: true,
		At:        time.Now(),
	}}}
	sink := &recordingSink{}
	e := newTestEngine(collector, exec, sink)

	e.tick(context.Background())

	require.Len(t, exec.calls, 1)
	assert.Equal(t, domain.StateConnected, e.State())
	require.Len(t, sink.byKind(domain.EventSuccess), 1)

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "abc", positions[0].ID)
}

func TestTickFiltersSmallSignals(t *testing.T) {
	collector := &scriptedCollector{batches: []collectResult{
		{signals: []domain.TradeSignal{buySignal(5)}},
	}}
	exec := &fakeExecutor{}
	sink := &recordingSink{}
	e := newTestEngine(collector, exec, sink)

	e.tick(context.Background())

	assert.Empty(t, exec.calls)
	infos := sink.byKind(domain.EventInfo)
	require.NotEmpty(t, infos)
	assert.Contains(t, infos[len(infos)-1].Message, "below minimum")
}

func TestDegradedLogsOncePerOutage(t *testing.T) {
	boom := errors.New("backend down")
	collector := &scriptedCollector{batches: []collectResult{
		{err: boom}, {err: boom}, {err: boom}, {},
	}}
	sink := &recordingSink{}
	e := newTestEngine(collector, &fakeExecutor{}, sink)

	for range 3 {
		e.tick(context.Background())
		assert.Equal(t, domain.StateError, e.State())
	}
	e.tick(context.Background())
	assert.Equal(t, domain.StateConnected, e.State())

	// Three consecutive failures then one recovery: exactly one ERROR
	// entry and one recovery notice.
	assert.Len(t, sink.byKind(domain.EventError), 1)
	recoveries := 0
	for _, ev := range sink.byKind(domain.EventInfo) {
		if ev.Message == "detection recovered" {
			recoveries++
		}
	}
	assert.Equal(t, 1, recoveries)
}

func TestExecutionFailureEmitsErrorEvent(t *testing.T) {
	collector := &scriptedCollector{batches: []collectResult{
		{signals: []domain.TradeSignal{buySignal(50)}},
	}}
	exec := &fakeExecutor{results: []domain.ExecutionResult{{
		Err: "order rejected",
		At:  time.Now(),
	}}}
	sink := &recordingSink{}
	e := newTestEngine(collector, exec, sink)

	e.tick(context.Background())

	assert.Equal(t, domain.StateConnected, e.State(), "execution failure is not a connection failure")
	errs := sink.byKind(domain.EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "order rejected")
	assert.Empty(t, e.Positions())
}

func TestStartStopLifecycle(t *testing.T) {
	collector := &scriptedCollector{}
	e := newTestEngine(collector, &fakeExecutor{}, &recordingSink{})

	require.NoError(t, e.Start(context.Background()))
	assert.Error(t, e.Start(context.Background()), "double start")

	// Wait for the immediate first tick to settle the state.
	require.Eventually(t, func() bool {
		return e.State() == domain.StateConnected
	}, time.Second, 5*time.Millisecond)

	e.Stop()
	assert.Equal(t, domain.StateStopped, e.State())
	assert.Equal(t, 1, collector.resets)

	// Restart works after a clean stop.
	require.NoError(t, e.Start(context.Background()))
	e.Stop()
	assert.Equal(t, 2, collector.resets)
}

func TestStopDoesNotAbortInFlightExecution(t *testing.T) {
	collector := &scriptedCollector{batches: []collectResult{
		{signals: []domain.TradeSignal{buySignal(50)}},
	}}
	exec := &blockingExecutor{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := &recordingSink{}
	e := New(
		Config{Target: "0x1", Interval: time.Hour, MinOrderUSD: 10},
		collector, exec, &fakeProvider{}, sink, nil, quietLogger(),
	)

	require.NoError(t, e.Start(context.Background()))
	<-exec.started

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	// Let Stop cancel the loop while the submission is still parked,
	// then release it and wait for the shutdown to complete.
	time.Sleep(20 * time.Millisecond)
	close(exec.release)
	<-stopped

	assert.NoError(t, exec.ctxErr, "a submission in flight must complete despite Stop")
	assert.Len(t, sink.byKind(domain.EventSuccess), 1)
	assert.Equal(t, domain.StateStopped, e.State())
}

func TestSimulationSkipsConnectivityStates(t *testing.T) {
	boom := errors.New("rpc down")
	collector := &scriptedCollector{batches: []collectResult{
		{err: boom}, {err: boom},
	}}
	sink := &recordingSink{}
	e := New(
		Config{Target: "0x1", Interval: time.Hour, MinOrderUSD: 10, Simulate: true},
		collector, &fakeExecutor{}, &fakeProvider{}, sink, nil, quietLogger(),
	)

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, domain.StateConnected, e.State(), "simulation starts running immediately")

	e.tick(context.Background())
	e.tick(context.Background())

	assert.Equal(t, domain.StateConnected, e.State(), "detection failures never degrade simulation")
	assert.Empty(t, sink.byKind(domain.EventError))
	e.Stop()
}

func TestTickReentrancyGuard(t *testing.T) {
	collector := &scriptedCollector{batches: []collectResult{
		{signals: []domain.TradeSignal{buySignal(50)}},
	}}
	exec := &fakeExecutor{}
	e := newTestEngine(collector, exec, &recordingSink{})

	e.inTick.Store(true)
	e.tick(context.Background())
	assert.Empty(t, exec.calls, "overlapping tick must be skipped")

	e.inTick.Store(false)
	e.tick(context.Background())
	assert.Len(t, exec.calls, 1)
}

func TestFilterAccept(t *testing.T) {
	f := Filter{MinOrderUSD: 10}

	ok, _ := f.Accept(buySignal(10))
	assert.True(t, ok)

	ok, reason := f.Accept(buySignal(9.99))
	assert.False(t, ok)
	assert.Contains(t, reason, "below minimum")

	ok, reason = f.Accept(buySignal(0))
	assert.False(t, ok)
	assert.Contains(t, reason, "no decodable size")

	ok, _ = Filter{}.Accept(buySignal(0.01))
	assert.True(t, ok, "zero floor disables the check")
}
