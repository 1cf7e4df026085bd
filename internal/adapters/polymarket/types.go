package polymarket

import "encoding/json"

// Raw DTOs from the Polymarket APIs. Used only inside this package;
// conversion to domain entities happens next to each fetch.

// --- Data API ---

// profileResponse is the user-directory record for an address or slug.
type profileResponse struct {
	Name        string `json:"name"`
	Pseudonym   string `json:"pseudonym"`
	Address     string `json:"address"`
	ProxyWallet string `json:"proxyWallet"`
}

// rawPosition is one row from GET /positions.
type rawPosition struct {
	Asset        string      `json:"asset"`
	ConditionID  string      `json:"conditionId"`
	Size         json.Number `json:"size"`
	AvgPrice     json.Number `json:"avgPrice"`
	CurPrice     json.Number `json:"curPrice"`
	CurrentValue json.Number `json:"currentValue"`
	CashPnL      json.Number `json:"cashPnl"`
	Title        string      `json:"title"`
	Outcome      string      `json:"outcome"`
}

// rawFill is one row from GET /trades.
type rawFill struct {
	ID              string      `json:"id"`
	Asset           string      `json:"asset"`
	ConditionID     string      `json:"conditionId"`
	Side            string      `json:"side"`
	Price           json.Number `json:"price"`
	Size            json.Number `json:"size"`
	Timestamp       json.Number `json:"timestamp"`
	Title           string      `json:"title"`
	Outcome         string      `json:"outcome"`
	TransactionHash string      `json:"transactionHash"`
}

// rawOpenOrder is one row from the open-order listing.
type rawOpenOrder struct {
	ID           string      `json:"id"`
	Market       string      `json:"market"`
	Side         string      `json:"side"`
	Price        json.Number `json:"price"`
	OriginalSize json.Number `json:"original_size"`
	SizeMatched  json.Number `json:"size_matched"`
	CreatedAt    json.Number `json:"created_at"`
}

// --- Gamma API ---

// gammaMarket is the market-metadata record. Gamma serializes the
// outcome/price/token arrays either as real JSON arrays or as
// JSON-encoded strings depending on the endpoint revision, so the
// fields stay raw here and flexList handles both shapes.
type gammaMarket struct {
	ConditionID   string          `json:"conditionId"`
	Question      string          `json:"question"`
	Slug          string          `json:"slug"`
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	ClobTokenIDs  json.RawMessage `json:"clobTokenIds"`
}

// --- Subgraph ---

// subgraphResponse is the GraphQL answer for the user-balance query.
type subgraphResponse struct {
	Data struct {
		UserBalances []subgraphBalance `json:"userBalances"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type subgraphBalance struct {
	Asset struct {
		ID           string `json:"id"`
		Condition    struct {
			ID string `json:"id"`
		} `json:"condition"`
		OutcomeIndex json.Number `json:"outcomeIndex"`
	} `json:"asset"`
	Balance json.Number `json:"balance"`
}
