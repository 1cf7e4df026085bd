package polymarket

// positions.go — two-backend position aggregation.
//
// The REST data API has the richer rows (titles, prices); the subgraph
// survives REST outages. Results merge with REST preferred, keyed by
// asset id. A nil return with ErrNoBackend means no backend answered at
// all; callers must treat that differently from an empty list.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// ErrNoBackend means every backend for every candidate address failed.
var ErrNoBackend = errors.New("polymarket: no position backend reachable")

const (
	// Positions below this share count are dust from rounding, not holdings.
	minPositionShares = 0.01

	positionsPageLimit = 500
)

// Aggregator merges position and order data across backends and
// candidate addresses.
type Aggregator struct {
	client   *Client
	resolver *Resolver
	catalog  *Catalog
}

// NewAggregator creates an Aggregator. The resolver is used for a fresh
// proxy-wallet lookup when building the candidate address set; the
// catalog prices subgraph rows that carry no price of their own.
func NewAggregator(client *Client, resolver *Resolver, catalog *Catalog) *Aggregator {
	return &Aggregator{client: client, resolver: resolver, catalog: catalog}
}

// FetchPositions returns the target's open positions, deduplicated by
// asset id and sorted by current notional value, descending.
func (a *Aggregator) FetchPositions(ctx context.Context, address, originalInput string) ([]domain.Position, error) {
	candidates := a.candidateAddresses(ctx, address, originalInput)

	merged := make(map[string]domain.Position)
	contacted := false

	for _, addr := range candidates {
		rest, err := a.restPositions(ctx, addr)
		if err != nil {
			slog.Debug("rest positions failed for address", "addr", addr, "err", err)
		} else {
			contacted = true
			for _, p := range rest {
				if _, ok := merged[p.ID]; !ok {
					merged[p.ID] = p
				}
			}
		}

		sub, err := a.subgraphPositions(ctx, addr)
		if err != nil {
			slog.Debug("subgraph positions failed for address", "addr", addr, "err", err)
		} else {
			contacted = true
			for _, p := range sub {
				// REST metadata preferred on conflict
				if _, ok := merged[p.ID]; !ok {
					merged[p.ID] = p
				}
			}
		}
	}

	if !contacted {
		return nil, ErrNoBackend
	}

	positions := make([]domain.Position, 0, len(merged))
	for _, p := range merged {
		if p.SizeShares < minPositionShares {
			continue
		}
		positions = append(positions, p)
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Notional() > positions[j].Notional()
	})
	return positions, nil
}

// candidateAddresses builds the fan-out set: the resolved address, the
// raw input when it is independently a valid address, and any proxy
// wallet a fresh directory lookup reports for the resolved address.
func (a *Aggregator) candidateAddresses(ctx context.Context, address, originalInput string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		if addr == "" || !common.IsHexAddress(addr) {
			return
		}
		key := strings.ToLower(addr)
		if !seen[key] {
			seen[key] = true
			out = append(out, common.HexToAddress(addr).Hex())
		}
	}

	add(address)
	add(CleanIdentifier(originalInput))

	if profile, err := a.resolver.LookupProfile(ctx, address, true); err == nil {
		if !isZeroAddr(profile.ProxyWallet) {
			add(profile.ProxyWallet)
		}
	}

	return out
}

// restPositions queries the data API for one address. A 404 counts as
// contact with zero rows.
func (a *Aggregator) restPositions(ctx context.Context, addr string) ([]domain.Position, error) {
	u := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.1&limit=%d",
		a.client.dataBase, url.QueryEscape(strings.ToLower(addr)), positionsPageLimit)

	var rows []rawPosition
	if err := a.client.getJSON(ctx, a.client.dataLimiter, u, &rows); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("polymarket.restPositions: %w", err)
	}

	positions := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		positions = append(positions, mapRestPosition(r))
	}
	return positions, nil
}

// mapRestPosition converts a data-API row, deriving the current price:
// the row's curPrice when present, otherwise currentValue/size, clamped
// to [0,100] cents.
func mapRestPosition(r rawPosition) domain.Position {
	size := numFloat(r.Size)
	cur := numFloat(r.CurPrice) * 100
	if cur <= 0 && size > 0 {
		cur = numFloat(r.CurrentValue) / size * 100
	}
	cur = clampCents(cur)

	return domain.Position{
		ID:           r.Asset,
		MarketLabel:  r.Title,
		Outcome:      outcomeFromLabel(r.Outcome),
		EntryPrice:   clampCents(numFloat(r.AvgPrice) * 100),
		CurrentPrice: cur,
		SizeShares:   size,
		PnL:          numFloat(r.CashPnL),
		ConditionID:  r.ConditionID,
	}
}

const subgraphQuery = `query Balances($user: String!) {
  userBalances(where: {user: $user, balance_gt: 0}, first: 500) {
    asset { id condition { id } outcomeIndex }
    balance
  }
}`

// subgraphPositions queries the decentralized subgraph, falling back to
// a GET-encoded query when the POST route is blocked.
func (a *Aggregator) subgraphPositions(ctx context.Context, addr string) ([]domain.Position, error) {
	body, err := json.Marshal(map[string]any{
		"query":     subgraphQuery,
		"variables": map[string]string{"user": strings.ToLower(addr)},
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket.subgraphPositions: marshal: %w", err)
	}

	var resp subgraphResponse
	err = a.client.postJSON(ctx, a.client.dataLimiter, a.client.subgraphURL, body, &resp)
	if err != nil {
		getURL := fmt.Sprintf("%s?query=%s&variables=%s",
			a.client.subgraphURL,
			url.QueryEscape(subgraphQuery),
			url.QueryEscape(fmt.Sprintf(`{"user":%q}`, strings.ToLower(addr))))
		if gerr := a.client.getJSON(ctx, a.client.dataLimiter, getURL, &resp); gerr != nil {
			return nil, fmt.Errorf("polymarket.subgraphPositions: %w", err)
		}
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("polymarket.subgraphPositions: graphql: %s", resp.Errors[0].Message)
	}

	return a.mapSubgraphBalances(ctx, resp.Data.UserBalances), nil
}

// mapSubgraphBalances converts subgraph rows, best-effort enriching them
// with catalog metadata (label + priced-outcome array).
func (a *Aggregator) mapSubgraphBalances(ctx context.Context, rows []subgraphBalance) []domain.Position {
	condIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		condIDs = append(condIDs, r.Asset.Condition.ID)
	}
	markets, err := a.catalog.GetBatch(ctx, condIDs, domain.KeyByCondition)
	if err != nil {
		slog.Debug("catalog enrichment for subgraph rows failed", "err", err)
	}

	positions := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		// Subgraph balances are in 6-decimal base units.
		shares := numFloat(r.Balance) / 1e6
		idx := int(numFloat(r.Asset.OutcomeIndex))

		p := domain.Position{
			ID:          r.Asset.ID,
			ConditionID: r.Asset.Condition.ID,
			Outcome:     OutcomeForIndex(idx),
			SizeShares:  shares,
		}
		if m, ok := markets[r.Asset.Condition.ID]; ok {
			p.MarketLabel = m.Label()
			if idx >= 0 && idx < len(m.OutcomePrices) {
				p.CurrentPrice = clampCents(m.OutcomePrices[idx])
			}
		}
		positions = append(positions, p)
	}
	return positions
}

// OutcomeForIndex maps a binary outcome index to its share class.
func OutcomeForIndex(idx int) domain.Outcome {
	if idx == 0 {
		return domain.OutcomeYes
	}
	return domain.OutcomeNo
}

func outcomeFromLabel(label string) domain.Outcome {
	if strings.EqualFold(label, "no") {
		return domain.OutcomeNo
	}
	return domain.OutcomeYes
}

func numFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}

func clampCents(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
