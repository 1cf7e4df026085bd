package advisor

// advisor.go — client for the external trade-history summarization
// service. The service is a nice-to-have: any failure degrades to a
// locally computed summary so the caller never has to branch on errors.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

const (
	requestTimeout = 10 * time.Second
	minFills       = 3
)

// Client implements ports.Advisor over an HTTP summarization endpoint.
// An empty base URL disables the remote call entirely.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates an advisor client. baseURL may be empty for offline mode.
func New(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
	}
}

type summarizeRequest struct {
	Trades []tradeSample `json:"trades"`
}

type tradeSample struct {
	Market    string  `json:"market"`
	Outcome   string  `json:"outcome"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	SizeUSD   float64 `json:"sizeUsd"`
	Timestamp int64   `json:"timestamp"`
}

// Summarize asks the service for a profile of the target's recent
// fills. Always returns a usable Advice; the error is informational.
func (c *Client) Summarize(ctx context.Context, fills []domain.Fill) (domain.Advice, error) {
	if len(fills) < minFills {
		return domain.Advice{
			Summary:   fmt.Sprintf("insufficient data: only %d recent trade(s)", len(fills)),
			RiskLevel: "unknown",
		}, nil
	}
	if c.baseURL == "" {
		return localAdvice(fills), nil
	}

	adv, err := c.remoteSummarize(ctx, fills)
	if err != nil {
		return localAdvice(fills), fmt.Errorf("advisor.Summarize: %w", err)
	}
	return adv, nil
}

func (c *Client) remoteSummarize(ctx context.Context, fills []domain.Fill) (domain.Advice, error) {
	samples := make([]tradeSample, 0, len(fills))
	for _, f := range fills {
		samples = append(samples, tradeSample{
			Market:    f.Title,
			Outcome:   f.Outcome,
			Side:      string(f.Side),
			Price:     f.Price,
			SizeUSD:   f.USDSize(),
			Timestamp: f.Timestamp.Unix(),
		})
	}

	body, err := json.Marshal(summarizeRequest{Trades: samples})
	if err != nil {
		return domain.Advice{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return domain.Advice{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Advice{}, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Advice{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var adv domain.Advice
	if err := json.NewDecoder(resp.Body).Decode(&adv); err != nil {
		return domain.Advice{}, fmt.Errorf("decode response: %w", err)
	}
	if adv.Summary == "" {
		return domain.Advice{}, fmt.Errorf("empty summary in response")
	}
	return adv, nil
}

// localAdvice builds a plain statistical profile when the service is
// unreachable or disabled.
func localAdvice(fills []domain.Fill) domain.Advice {
	var buys int
	var totalUSD float64
	for _, f := range fills {
		if f.Side == domain.SideBuy {
			buys++
		}
		totalUSD += f.USDSize()
	}
	avg := totalUSD / float64(len(fills))

	span := fills[0].Timestamp.Sub(fills[len(fills)-1].Timestamp)
	if span < 0 {
		span = -span
	}
	days := int(span.Hours()/24) + 1

	risk := "low"
	switch {
	case avg >= 500:
		risk = "high"
	case avg >= 50:
		risk = "medium"
	}

	return domain.Advice{
		Summary: fmt.Sprintf("%d trades over ~%d day(s), %d buys / %d sells, avg $%.2f per trade",
			len(fills), days, buys, len(fills)-buys, avg),
		RiskLevel: risk,
	}
}
