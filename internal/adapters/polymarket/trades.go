package polymarket

// trades.go — settled trade history. Feeds the polling detection
// channel and the advisor.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

const defaultFillsLimit = 100

// FetchFills returns the most recent settled trades for an address,
// newest first as the upstream serves them.
func (c *Client) FetchFills(ctx context.Context, address string, limit int) ([]domain.Fill, error) {
	if limit <= 0 {
		limit = defaultFillsLimit
	}

	u := fmt.Sprintf("%s/trades?user=%s&limit=%d",
		c.dataBase, url.QueryEscape(strings.ToLower(address)), limit)

	var rows []rawFill
	if err := c.getJSON(ctx, c.dataLimiter, u, &rows); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("polymarket.FetchFills: %w", err)
	}

	fills := make([]domain.Fill, 0, len(rows))
	for _, r := range rows {
		side := domain.SideBuy
		if strings.EqualFold(r.Side, "sell") {
			side = domain.SideSell
		}
		fills = append(fills, domain.Fill{
			ID:          r.ID,
			TokenID:     r.Asset,
			ConditionID: r.ConditionID,
			Title:       r.Title,
			Outcome:     r.Outcome,
			Side:        side,
			Price:       numFloat(r.Price),
			SizeShares:  numFloat(r.Size),
			Timestamp:   time.Unix(int64(numFloat(r.Timestamp)), 0).UTC(),
			TxHash:      r.TransactionHash,
		})
	}
	return fills, nil
}
