package domain

import "time"

// Fill is one settled trade from the exchange's trade-history API,
// as consumed by the polling detection channel.
type Fill struct {
	ID          string
	TokenID     string
	ConditionID string
	Title       string
	Outcome     string
	Side        Side
	Price       float64 // probability, 0-1
	SizeShares  float64
	Timestamp   time.Time
	TxHash      string
}

// USDSize is the notional value of the fill in USD.
func (f Fill) USDSize() float64 {
	return f.SizeShares * f.Price
}
