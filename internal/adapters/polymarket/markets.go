package polymarket

// markets.go — cached market-metadata catalog over the Gamma API.
//
// Market metadata is immutable once a market is running, so cache
// entries are never invalidated for the session. Lookups are chunked to
// stay under Gamma's query-length limit; a failed chunk is skipped, not
// fatal to the rest.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

const catalogChunkSize = 10

// Catalog is the session-scoped market-metadata cache. The cache is
// owned by the catalog instance (injected where needed), not a package
// singleton, so concurrent targets stay isolated.
type Catalog struct {
	client *Client

	mu    sync.RWMutex
	cache map[string]domain.Market // keyed "token:<id>" and "cond:<id>"
}

// NewCatalog creates an empty catalog backed by the Gamma API.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client, cache: make(map[string]domain.Market)}
}

// GetOne returns the market holding the given CLOB token id, or nil when
// the id is unknown upstream.
func (cat *Catalog) GetOne(ctx context.Context, tokenID string) (*domain.Market, error) {
	got, err := cat.GetBatch(ctx, []string{tokenID}, domain.KeyByToken)
	if err != nil {
		return nil, err
	}
	if m, ok := got[tokenID]; ok {
		return &m, nil
	}
	return nil, nil
}

// GetBatch resolves markets for the given ids, consulting the cache
// first and fetching the remainder in chunks. The returned map contains
// whatever resolved; chunk failures are logged and skipped.
func (cat *Catalog) GetBatch(ctx context.Context, ids []string, kind domain.MarketKeyKind) (map[string]domain.Market, error) {
	result := make(map[string]domain.Market, len(ids))
	var missing []string

	cat.mu.RLock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if m, ok := cat.cache[cacheKey(kind, id)]; ok {
			result[id] = m
		} else {
			missing = append(missing, id)
		}
	}
	cat.mu.RUnlock()

	if len(missing) == 0 {
		return result, nil
	}

	failures := 0
	for start := 0; start < len(missing); start += catalogChunkSize {
		end := min(start+catalogChunkSize, len(missing))
		chunk := missing[start:end]

		markets, err := cat.fetchChunk(ctx, chunk, kind)
		if err != nil {
			failures++
			slog.Debug("market chunk fetch failed, skipping",
				"kind", kind, "chunk", fmt.Sprintf("%d-%d", start, end), "err", err)
			continue
		}

		cat.mu.Lock()
		for _, m := range markets {
			cat.store(m)
		}
		cat.mu.Unlock()

		for _, id := range chunk {
			cat.mu.RLock()
			if m, ok := cat.cache[cacheKey(kind, id)]; ok {
				result[id] = m
			}
			cat.mu.RUnlock()
		}
	}

	if failures > 0 && len(result) == 0 {
		return result, errors.New("polymarket.GetBatch: every chunk failed")
	}
	return result, nil
}

// store indexes a market under both key kinds. Entries are append-only.
func (cat *Catalog) store(m domain.Market) {
	if m.ConditionID != "" {
		cat.cache[cacheKey(domain.KeyByCondition, m.ConditionID)] = m
	}
	for _, tid := range m.TokenIDs {
		cat.cache[cacheKey(domain.KeyByToken, tid)] = m
	}
}

func (cat *Catalog) fetchChunk(ctx context.Context, ids []string, kind domain.MarketKeyKind) ([]domain.Market, error) {
	param := "clob_token_ids"
	if kind == domain.KeyByCondition {
		param = "condition_ids"
	}

	u := fmt.Sprintf("%s/markets?%s=%s&limit=%d",
		cat.client.gammaBase, param, url.QueryEscape(strings.Join(ids, ",")), catalogChunkSize)

	var resp []gammaMarket
	if err := cat.client.getJSON(ctx, cat.client.gammaLimiter, u, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	markets := make([]domain.Market, 0, len(resp))
	for _, gm := range resp {
		markets = append(markets, mapGammaMarket(gm))
	}
	return markets, nil
}

// mapGammaMarket converts a raw Gamma record to a domain.Market.
func mapGammaMarket(gm gammaMarket) domain.Market {
	m := domain.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		Outcomes:    flexList(gm.Outcomes),
		TokenIDs:    flexList(gm.ClobTokenIDs),
	}
	for _, p := range flexList(gm.OutcomePrices) {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			f = 0
		}
		m.OutcomePrices = append(m.OutcomePrices, f*100)
	}
	return m
}

// flexList decodes a field that is either a JSON array of strings or a
// JSON-encoded string containing such an array (both occur in the wild).
func flexList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil
	}
	return list
}

func cacheKey(kind domain.MarketKeyKind, id string) string {
	return string(kind) + ":" + id
}
