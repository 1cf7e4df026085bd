package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/ports"
)

const defaultTickInterval = 2 * time.Second

// Collector is the detection side the engine drives each tick.
type Collector interface {
	Collect(ctx context.Context) ([]domain.TradeSignal, error)
	Reset()
}

// Config is the engine's runtime knobs, already validated by the caller.
type Config struct {
	Target        string // resolved trading address
	OriginalInput string // identifier as the user typed it
	Interval      time.Duration
	MinOrderUSD   float64
	Simulate      bool // skip the connectivity state machine
}

// Engine owns the copy-trading loop: one state machine, one ticker,
// sequential execution. All public methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	filter   Filter
	collect  Collector
	executor ports.OrderExecutor
	provider ports.PositionProvider
	sink     ports.EventSink
	store    ports.Storage
	log      *slog.Logger

	mu        sync.Mutex
	state     domain.ConnectionState
	positions []domain.Position
	cancel    context.CancelFunc
	done      chan struct{}

	inTick   atomic.Bool
	degraded bool
}

// New assembles an engine in the STOPPED state. store may be nil when
// persistence is disabled.
func New(cfg Config, collect Collector, executor ports.OrderExecutor, provider ports.PositionProvider, sink ports.EventSink, store ports.Storage, log *slog.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultTickInterval
	}
	return &Engine{
		cfg:      cfg,
		filter:   Filter{MinOrderUSD: cfg.MinOrderUSD},
		collect:  collect,
		executor: executor,
		provider: provider,
		sink:     sink,
		store:    store,
		log:      log,
		state:    domain.StateStopped,
	}
}

// State returns the current connection state.
func (e *Engine) State() domain.ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Positions returns a copy of the last known position snapshot.
func (e *Engine) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Position, len(e.positions))
	copy(out, e.positions)
	return out
}

// Start transitions STOPPED → CONNECTING and launches the tick loop.
// Simulation goes straight to CONNECTED: it has no backend connection
// to establish or lose. Starting an already-running engine is an error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != domain.StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine.Start: already running (state %s)", e.state)
	}
	if e.cfg.Simulate {
		e.state = domain.StateConnected
	} else {
		e.state = domain.StateConnecting
	}
	e.degraded = false
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.collect.Reset()
	e.emit(domain.LogEvent{
		Kind:    domain.EventInfo,
		Message: "mirroring " + e.cfg.Target,
		At:      time.Now(),
	})

	// Initial snapshot is best-effort; an unreachable backend leaves
	// the list empty and the first healthy tick catches up.
	if err := e.RefreshPositions(loopCtx); err != nil {
		e.log.Warn("initial position snapshot unavailable", "error", err)
	}

	go e.run(loopCtx)
	return nil
}

// Stop cancels the loop and waits for the in-flight tick to finish.
// Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == domain.StateStopped {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	e.state = domain.StateStopped
	e.mu.Unlock()

	e.emit(domain.LogEvent{
		Kind:    domain.EventInfo,
		Message: "monitoring stopped",
		At:      time.Now(),
	})
}

// RefreshPositions re-fetches the target's open positions. Any fetch
// error (including no backend reachable) keeps the previous snapshot;
// an empty result replaces it.
func (e *Engine) RefreshPositions(ctx context.Context) error {
	positions, err := e.provider.FetchPositions(ctx, e.cfg.Target, e.cfg.OriginalInput)
	if err != nil {
		return fmt.Errorf("engine.RefreshPositions: %w", err)
	}
	e.mu.Lock()
	e.positions = positions
	e.mu.Unlock()
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	// First pass immediately so a fresh Start reacts without waiting
	// a full interval.
	e.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one detection-and-execution pass. A pass still running when
// the next tick fires is skipped rather than overlapped.
func (e *Engine) tick(ctx context.Context) {
	if !e.inTick.CompareAndSwap(false, true) {
		return
	}
	defer e.inTick.Store(false)

	if ctx.Err() != nil {
		return
	}

	signals, err := e.collect.Collect(ctx)
	if err != nil {
		if e.cfg.Simulate {
			// Simulation never degrades on connectivity; a failed
			// detection pass just retries on the next tick.
			e.log.Warn("detection pass failed", "error", err)
			return
		}
		e.enterDegraded(err)
		return
	}
	if !e.cfg.Simulate {
		e.leaveDegraded()
	}

	for _, sig := range signals {
		if ctx.Err() != nil {
			return
		}
		e.handleSignal(ctx, sig)
	}
}

// enterDegraded flips to ERROR and logs once. Repeat failures stay
// silent until the loop recovers, so a flapping backend does not flood
// the event stream.
func (e *Engine) enterDegraded(err error) {
	e.mu.Lock()
	first := !e.degraded
	e.degraded = true
	e.state = domain.StateError
	e.mu.Unlock()

	if !first {
		return
	}
	e.log.Error("detection failing, entering degraded state", "error", err)
	e.emit(domain.LogEvent{
		Kind:    domain.EventError,
		Message: "detection unavailable: " + err.Error(),
		At:      time.Now(),
	})
}

func (e *Engine) leaveDegraded() {
	e.mu.Lock()
	wasDegraded := e.degraded
	e.degraded = false
	e.state = domain.StateConnected
	e.mu.Unlock()

	if !wasDegraded {
		return
	}
	e.log.Info("detection recovered")
	e.emit(domain.LogEvent{
		Kind:    domain.EventInfo,
		Message: "detection recovered",
		At:      time.Now(),
	})
}

func (e *Engine) handleSignal(ctx context.Context, sig domain.TradeSignal) {
	if ok, reason := e.filter.Accept(sig); !ok {
		e.log.Debug("signal rejected", "market", sig.MarketLabel, "reason", reason)
		e.emit(domain.LogEvent{
			Kind:    domain.EventInfo,
			Message: fmt.Sprintf("skipped %s: %s", sig.MarketLabel, reason),
			TokenID: sig.TokenID,
			At:      time.Now(),
		})
		return
	}

	e.emit(domain.LogEvent{
		Kind:    domain.EventPending,
		Message: fmt.Sprintf("copying %s %s $%.2f on %s", sig.Side, sig.Outcome, sig.SizeUSD, sig.MarketLabel),
		TxHash:  sig.TxHash,
		Amount:  sig.SizeUSD,
		Outcome: sig.Outcome,
		TokenID: sig.TokenID,
		Side:    sig.Side,
		At:      time.Now(),
	})

	// A submission already in flight completes even if Stop cancels the
	// loop mid-tick; a half-submitted order is worse than a late shutdown.
	execCtx := context.WithoutCancel(ctx)
	res := e.executor.Execute(execCtx, sig)
	if !res.Success() {
		e.log.Warn("copy failed", "market", sig.MarketLabel, "error", res.Err)
		e.emit(domain.LogEvent{
			Kind:    domain.EventError,
			Message: fmt.Sprintf("copy failed on %s: %s", sig.MarketLabel, res.Err),
			TokenID: sig.TokenID,
			Side:    sig.Side,
			At:      res.At,
		})
		return
	}

	e.log.Info("copy placed",
		"market", sig.MarketLabel,
		"side", string(res.Side),
		"outcome", string(res.Outcome),
		"usd", res.AmountUSD,
		"simulated", res.Simulated)
	e.emit(domain.LogEvent{
		Kind:    domain.EventSuccess,
		Message: fmt.Sprintf("placed %s %s $%d on %s", res.Side, res.Outcome, res.AmountUSD, res.Market),
		TxHash:  res.TxHash,
		Amount:  float64(res.AmountUSD),
		Outcome: res.Outcome,
		TokenID: res.TokenID,
		Side:    res.Side,
		At:      res.At,
	})
	if e.store != nil {
		if err := e.store.SaveExecution(execCtx, res); err != nil {
			e.log.Warn("execution not persisted", "error", err)
		}
	}

	e.recordCopy(res, sig)
}

// recordCopy appends the fresh copy to the local snapshot so the
// console reflects it before the next backend refresh.
func (e *Engine) recordCopy(res domain.ExecutionResult, sig domain.TradeSignal) {
	pos := domain.Position{
		ID:          res.OrderID,
		MarketLabel: res.Market,
		Outcome:     res.Outcome,
		SizeShares:  float64(res.AmountUSD),
	}
	if pos.MarketLabel == "" {
		pos.MarketLabel = sig.MarketLabel
	}
	e.mu.Lock()
	e.positions = append(e.positions, pos)
	e.mu.Unlock()
}

// emit fans an event to the sink and, when configured, storage.
func (e *Engine) emit(ev domain.LogEvent) {
	e.sink.Append(ev)
	if e.store != nil {
		if err := e.store.SaveEvent(context.Background(), ev); err != nil {
			e.log.Debug("event not persisted", "error", err)
		}
	}
}
