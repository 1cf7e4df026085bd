package domain

import "time"

// SourceChannel identifies which detection channel produced a signal.
type SourceChannel string

const (
	ChannelMempool SourceChannel = "MEMPOOL"
	ChannelPolling SourceChannel = "POLLING"
)

// MonitoringMode selects which detection channels the engine runs.
type MonitoringMode string

const (
	ModeMempool MonitoringMode = "mempool"
	ModePolling MonitoringMode = "polling"
	ModeHybrid  MonitoringMode = "hybrid"
)

// Mempool reports whether the pending-transaction channel is enabled.
func (m MonitoringMode) Mempool() bool {
	return m == ModeMempool || m == ModeHybrid
}

// Polling reports whether the trade-history polling channel is enabled.
func (m MonitoringMode) Polling() bool {
	return m == ModePolling || m == ModeHybrid
}

// Valid reports whether m is one of the known modes.
func (m MonitoringMode) Valid() bool {
	return m == ModeMempool || m == ModePolling || m == ModeHybrid
}

// Outcome is the binary share class of a prediction market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeSignal is a normalized trade detected from the target wallet,
// prior to sizing and filtering. Immutable once created; DedupKey is
// its identity (tx hash for mempool hits, channel-prefixed trade id
// for polled fills).
type TradeSignal struct {
	Channel     SourceChannel
	MarketLabel string
	TokenID     string
	Outcome     Outcome
	Side        Side
	SizeUSD     float64
	// NegRisk marks a trade detected on the neg-risk exchange; copies
	// must be signed against the same exchange to be accepted.
	NegRisk    bool
	DedupKey   string
	TxHash     string
	DetectedAt time.Time
}
