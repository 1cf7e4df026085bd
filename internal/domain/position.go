package domain

import "time"

// Position is an open position held by the target wallet, merged from
// the REST data API and the subgraph. Identity is the provider asset id;
// values are not reconciled across providers (first writer wins).
type Position struct {
	ID           string
	MarketLabel  string
	Outcome      Outcome
	EntryPrice   float64 // cents, 0-100
	CurrentPrice float64 // cents, 0-100
	SizeShares   float64
	PnL          float64
	ConditionID  string
}

// Notional is the current value of the position in USD.
func (p Position) Notional() float64 {
	return p.SizeShares * p.CurrentPrice / 100
}

// OpenOrder is a read-only projection of a resting order on the exchange.
type OpenOrder struct {
	ID        string
	MarketRef string
	Side      Side
	Price     float64
	Size      float64
	Filled    float64
	Timestamp time.Time
}
