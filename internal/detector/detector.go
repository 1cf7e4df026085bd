package detector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/ports"
)

const (
	defaultPollLimit  = 50
	defaultPollGrace  = 30 * time.Second
	heartbeatThrottle = 4 * time.Second
)

// Config selects the detection channels and their polling behavior.
type Config struct {
	Mode   domain.MonitoringMode
	Target string

	// PollGrace is how far back the first poll window reaches, so a
	// trade landing just before startup is still caught.
	PollGrace time.Duration

	// PollLimit caps the trade-history page size per poll.
	PollLimit int
}

// Detector runs the enabled detection channels and emits deduplicated
// trade signals. Not safe for concurrent use; the engine calls Collect
// from a single loop.
type Detector struct {
	cfg     Config
	scanner ports.PendingScanner
	fills   ports.FillProvider
	catalog ports.MarketCatalog
	sink    ports.EventSink
	log     *slog.Logger

	seen          *seenSet
	lastPoll      time.Time
	lastHeartbeat time.Time
	now           func() time.Time
}

// New wires a detector. scanner may be nil when the mempool channel is
// disabled; fills may be nil when polling is disabled.
func New(cfg Config, scanner ports.PendingScanner, fills ports.FillProvider, catalog ports.MarketCatalog, sink ports.EventSink, log *slog.Logger) *Detector {
	if cfg.PollGrace <= 0 {
		cfg.PollGrace = defaultPollGrace
	}
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = defaultPollLimit
	}
	return &Detector{
		cfg:     cfg,
		scanner: scanner,
		fills:   fills,
		catalog: catalog,
		sink:    sink,
		log:     log,
		seen:    newSeenSet(defaultSeenCap),
		now:     time.Now,
	}
}

// Collect runs one detection pass. Mempool signals come first so a
// pending trade is copied before its settled fill shows up in polling.
// A mempool failure in hybrid mode degrades to polling only; a polling
// failure is fatal for the pass.
func (d *Detector) Collect(ctx context.Context) ([]domain.TradeSignal, error) {
	var out []domain.TradeSignal

	if d.cfg.Mode.Mempool() && d.scanner != nil {
		signals, undecodable, err := d.scanner.ScanPending(ctx, d.cfg.Target)
		switch {
		case err != nil && !d.cfg.Mode.Polling():
			return nil, fmt.Errorf("detector.Collect: mempool: %w", err)
		case err != nil:
			d.log.Warn("mempool scan failed, falling back to polling", "error", err)
		default:
			for _, sig := range signals {
				if d.seen.Add(sig.DedupKey) {
					out = append(out, sig)
				}
			}
			if undecodable > 0 {
				d.sink.Append(domain.LogEvent{
					Kind:    domain.EventPending,
					Message: fmt.Sprintf("%d pending exchange transaction(s) from target could not be decoded", undecodable),
					At:      d.now(),
				})
			}
		}
	}

	if d.cfg.Mode.Polling() && d.fills != nil {
		polled, err := d.poll(ctx)
		if err != nil {
			return nil, fmt.Errorf("detector.Collect: %w", err)
		}
		out = append(out, polled...)
	}

	d.heartbeat(len(out))
	return out, nil
}

// poll fetches recent fills and converts the unseen ones inside the
// current window into signals. The window always advances to now, even
// when every fill is filtered: a fill arriving with a timestamp inside
// an already-consumed window is intentionally dropped rather than
// risking a duplicate copy.
func (d *Detector) poll(ctx context.Context) ([]domain.TradeSignal, error) {
	if d.lastPoll.IsZero() {
		d.lastPoll = d.now().Add(-d.cfg.PollGrace)
	}

	fills, err := d.fills.FetchFills(ctx, d.cfg.Target, d.cfg.PollLimit)
	if err != nil {
		return nil, fmt.Errorf("poll fills: %w", err)
	}

	windowStart := d.lastPoll
	d.lastPoll = d.now()

	var fresh []domain.Fill
	for _, f := range fills {
		if !f.Timestamp.After(windowStart) {
			continue
		}
		// The history API occasionally re-issues a fill under an id
		// differing only in its trailing segment; dedup on both the
		// raw id and the truncated form.
		rawKey := "poll:" + f.ID
		baseKey := "poll:" + simplifyID(f.ID)
		if d.seen.Has(rawKey) || d.seen.Has(baseKey) {
			continue
		}
		d.seen.Add(rawKey)
		if baseKey != rawKey {
			d.seen.Add(baseKey)
		}
		fresh = append(fresh, f)
	}

	d.resolveLabels(ctx, fresh)

	signals := make([]domain.TradeSignal, 0, len(fresh))
	for _, f := range fresh {
		signals = append(signals, fillSignal(f, d.now()))
	}
	return signals, nil
}

// resolveLabels backfills missing market titles in one batched catalog
// lookup. Lookup failure leaves the token id as the label.
func (d *Detector) resolveLabels(ctx context.Context, fills []domain.Fill) {
	if d.catalog == nil {
		return
	}
	var missing []string
	for _, f := range fills {
		if f.Title == "" && f.ConditionID != "" {
			missing = append(missing, f.ConditionID)
		}
	}
	if len(missing) == 0 {
		return
	}
	markets, err := d.catalog.GetBatch(ctx, missing, domain.KeyByCondition)
	if err != nil {
		d.log.Debug("market label lookup failed", "error", err)
		return
	}
	for i := range fills {
		if fills[i].Title != "" {
			continue
		}
		if m, ok := markets[fills[i].ConditionID]; ok {
			fills[i].Title = m.Label()
		}
	}
}

// heartbeat logs a throttled liveness line so quiet targets still show
// the loop is running.
func (d *Detector) heartbeat(emitted int) {
	now := d.now()
	if now.Sub(d.lastHeartbeat) < heartbeatThrottle {
		return
	}
	d.lastHeartbeat = now
	d.log.Info("detection pass complete",
		"target", d.cfg.Target,
		"mode", string(d.cfg.Mode),
		"signals", emitted,
		"tracked", d.seen.Len())
}

// Reset clears dedup state and the poll window, for a fresh Start.
func (d *Detector) Reset() {
	d.seen.Reset()
	d.lastPoll = time.Time{}
	d.lastHeartbeat = time.Time{}
}

func fillSignal(f domain.Fill, at time.Time) domain.TradeSignal {
	label := f.Title
	if label == "" {
		label = f.TokenID
	}
	return domain.TradeSignal{
		Channel:     domain.ChannelPolling,
		MarketLabel: label,
		TokenID:     f.TokenID,
		Outcome:     normalizeOutcome(f.Outcome, f.Side),
		Side:        f.Side,
		SizeUSD:     f.USDSize(),
		DedupKey:    "poll:" + f.ID,
		TxHash:      f.TxHash,
		DetectedAt:  at,
	}
}

// simplifyID strips the trailing dash-delimited segment of a fill id.
func simplifyID(id string) string {
	if idx := strings.LastIndex(id, "-"); idx > 0 {
		return id[:idx]
	}
	return id
}

// normalizeOutcome maps the API's free-form outcome label to YES/NO,
// inferring from trade direction when the label is absent.
func normalizeOutcome(label string, side domain.Side) domain.Outcome {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "NO":
		return domain.OutcomeNo
	case "YES":
		return domain.OutcomeYes
	}
	if side == domain.SideSell {
		return domain.OutcomeNo
	}
	return domain.OutcomeYes
}
