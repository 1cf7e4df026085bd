package engine

import (
	"fmt"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// Filter decides which detected signals are worth copying. Rejections
// carry a human-readable reason for the event log.
type Filter struct {
	// MinOrderUSD drops signals below this notional. Zero disables
	// the floor.
	MinOrderUSD float64
}

// Accept returns whether the signal passes, with the rejection reason
// when it does not.
func (f Filter) Accept(sig domain.TradeSignal) (bool, string) {
	if sig.SizeUSD <= 0 {
		return false, "signal has no decodable size"
	}
	if f.MinOrderUSD > 0 && sig.SizeUSD < f.MinOrderUSD {
		return false, fmt.Sprintf("size $%.2f below minimum $%.2f", sig.SizeUSD, f.MinOrderUSD)
	}
	return true, ""
}
