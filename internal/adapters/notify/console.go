package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// Console implements ports.EventSink, printing one compact line per
// event. It also renders position and advice summaries on demand.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a sink writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a sink for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Append prints the event as a single line. Never blocks beyond the
// write itself.
func (c *Console) Append(ev domain.LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-8s %s", at.Format("15:04:05"), kindTag(ev.Kind), ev.Message)
	if ev.TxHash != "" {
		fmt.Fprintf(&sb, " tx:%s", shortHash(ev.TxHash))
	}
	fmt.Fprintln(c.out, sb.String())
}

// RenderPositions prints the target's open positions as a table,
// largest notional first (the provider already sorts).
func (c *Console) RenderPositions(target string, positions []domain.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().Format("15:04:05")
	if len(positions) == 0 {
		fmt.Fprintf(c.out, "[%s] %s holds no open positions\n", now, shortHash(target))
		return
	}

	fmt.Fprintf(c.out, "\n[%s] %s: %d open position(s), $%.2f total\n",
		now, shortHash(target), len(positions), totalNotional(positions))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Side", "Entry", "Now", "Shares", "Value", "PnL")

	for i, pos := range positions {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(pos.MarketLabel, 38),
			string(pos.Outcome),
			fmt.Sprintf("%.1f¢", pos.EntryPrice),
			fmt.Sprintf("%.1f¢", pos.CurrentPrice),
			fmt.Sprintf("%.1f", pos.SizeShares),
			fmt.Sprintf("$%.2f", pos.Notional()),
			fmt.Sprintf("%+.2f", pos.PnL),
		)
	}
	table.Render()
}

// RenderOrders prints the target's resting orders.
func (c *Console) RenderOrders(orders []domain.OpenOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(orders) == 0 {
		fmt.Fprintf(c.out, "[%s] no resting orders\n", time.Now().Format("15:04:05"))
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Side", "Price", "Size", "Filled", "Placed")
	for i, o := range orders {
		placed := "-"
		if !o.Timestamp.IsZero() {
			placed = o.Timestamp.Format("01-02 15:04")
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(o.MarketRef, 38),
			string(o.Side),
			fmt.Sprintf("%.3f", o.Price),
			fmt.Sprintf("%.1f", o.Size),
			fmt.Sprintf("%.1f", o.Filled),
			placed,
		)
	}
	table.Render()
}

// RenderAdvice prints the trade-history summary from the advisor.
func (c *Console) RenderAdvice(adv domain.Advice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== TARGET PROFILE ===\n")
	fmt.Fprintf(c.out, "  Summary:  %s\n", adv.Summary)
	if adv.RiskLevel != "" {
		fmt.Fprintf(c.out, "  Risk:     %s\n", adv.RiskLevel)
	}
	if adv.StrategyGuess != "" {
		fmt.Fprintf(c.out, "  Strategy: %s\n", adv.StrategyGuess)
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func kindTag(kind domain.EventKind) string {
	switch kind {
	case domain.EventSuccess:
		return "[OK]"
	case domain.EventError:
		return "[ERR]"
	case domain.EventPending:
		return "[PEND]"
	case domain.EventFrontrun:
		return "[FRONT]"
	case domain.EventRetry:
		return "[RETRY]"
	default:
		return "[INFO]"
	}
}

func shortHash(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:8] + ".." + s[len(s)-4:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func totalNotional(positions []domain.Position) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.Notional()
	}
	return total
}
