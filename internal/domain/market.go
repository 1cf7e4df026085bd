package domain

// Market is the cached metadata for a prediction market. Entries are
// immutable after first insertion into the catalog cache.
type Market struct {
	ConditionID   string
	Question      string
	Slug          string
	Outcomes      []string  // e.g. ["Yes", "No"]
	OutcomePrices []float64 // cents, aligned with Outcomes
	TokenIDs      []string  // CLOB token ids, aligned with Outcomes
}

// Label returns the display name for the market, falling back to the
// slug and then the condition id when the question is missing.
func (m Market) Label() string {
	if m.Question != "" {
		return m.Question
	}
	if m.Slug != "" {
		return m.Slug
	}
	return m.ConditionID
}

// MarketKeyKind selects which identifier a catalog batch lookup keys on.
type MarketKeyKind string

const (
	KeyByToken     MarketKeyKind = "token"
	KeyByCondition MarketKeyKind = "condition"
)
