package polymarket

// orders.go — open-order projection. Same candidate-address fan-out as
// positions, REST only (no subgraph carries the order book).

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// FetchOpenOrders returns the target's resting orders, deduplicated by
// order id and sorted newest first.
func (a *Aggregator) FetchOpenOrders(ctx context.Context, address, originalInput string) ([]domain.OpenOrder, error) {
	candidates := a.candidateAddresses(ctx, address, originalInput)

	merged := make(map[string]domain.OpenOrder)
	contacted := false

	for _, addr := range candidates {
		rows, err := a.restOpenOrders(ctx, addr)
		if err != nil {
			slog.Debug("open-order fetch failed for address", "addr", addr, "err", err)
			continue
		}
		contacted = true
		for _, o := range rows {
			if _, ok := merged[o.ID]; !ok {
				merged[o.ID] = o
			}
		}
	}

	if !contacted {
		return nil, ErrNoBackend
	}

	orders := make([]domain.OpenOrder, 0, len(merged))
	for _, o := range merged {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Timestamp.After(orders[j].Timestamp)
	})
	return orders, nil
}

func (a *Aggregator) restOpenOrders(ctx context.Context, addr string) ([]domain.OpenOrder, error) {
	u := fmt.Sprintf("%s/orders?user=%s", a.client.dataBase, url.QueryEscape(strings.ToLower(addr)))

	var rows []rawOpenOrder
	if err := a.client.getJSON(ctx, a.client.dataLimiter, u, &rows); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("polymarket.restOpenOrders: %w", err)
	}

	orders := make([]domain.OpenOrder, 0, len(rows))
	for _, r := range rows {
		side := domain.SideBuy
		if strings.EqualFold(r.Side, "sell") {
			side = domain.SideSell
		}
		orders = append(orders, domain.OpenOrder{
			ID:        r.ID,
			MarketRef: r.Market,
			Side:      side,
			Price:     numFloat(r.Price),
			Size:      numFloat(r.OriginalSize),
			Filled:    numFloat(r.SizeMatched),
			Timestamp: time.Unix(int64(numFloat(r.CreatedAt)), 0).UTC(),
		})
	}
	return orders, nil
}
