package domain

import "time"

// ExecutionResult is the outcome of copying one signal. Exactly one of
// the two branches is meaningful: Err == "" means success.
type ExecutionResult struct {
	OrderID   string
	TxHash    string
	AmountUSD int64 // whole USDC dollars, floor(signal size × multiplier)
	Market    string
	Outcome   Outcome
	TokenID   string
	Side      Side
	Simulated bool
	Err       string
	At        time.Time
}

// Success reports whether the order was accepted.
func (r ExecutionResult) Success() bool {
	return r.Err == ""
}

// Advice is the structured answer from the external summarization
// service over the target's recent trade history.
type Advice struct {
	Summary       string `json:"summary"`
	RiskLevel     string `json:"riskLevel"`
	StrategyGuess string `json:"strategyGuess"`
}
