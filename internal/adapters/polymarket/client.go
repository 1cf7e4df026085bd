package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/proxyfetch"
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"
	defaultDataBase  = "https://data-api.polymarket.com"

	defaultSubgraphURL = "https://api.goldsky.com/api/public/project_cl6mb8i9h0003e201j6li0diw/subgraphs/positions-subgraph/prod/gn"

	// Rate limits at 60% of the documented API limits.
	// Gamma /markets: 300/10s → 18/s. Data API is more generous.
	gammaRatePerSec = 18
	dataRatePerSec  = 50
)

// ErrNotFound marks a terminal 404: the resource does not exist, but
// the backend was reached.
var ErrNotFound = errors.New("polymarket: not found")

// ErrUnreachable marks fetch-chain exhaustion: no contact was made.
var ErrUnreachable = errors.New("polymarket: upstream unreachable")

// Client is the Polymarket HTTP client. All traffic goes through the
// proxyfetch fallback chain so a blocked or flaky direct route degrades
// instead of failing.
type Client struct {
	fetch        *proxyfetch.Fetcher
	clobBase     string
	gammaBase    string
	dataBase     string
	subgraphURL  string
	gammaLimiter *rate.Limiter
	dataLimiter  *rate.Limiter
}

// NewClient creates a Client. Empty base URLs fall back to production.
func NewClient(fetch *proxyfetch.Fetcher, clobBase, gammaBase, dataBase, subgraphURL string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	if dataBase == "" {
		dataBase = defaultDataBase
	}
	if subgraphURL == "" {
		subgraphURL = defaultSubgraphURL
	}
	return &Client{
		fetch:        fetch,
		clobBase:     clobBase,
		gammaBase:    gammaBase,
		dataBase:     dataBase,
		subgraphURL:  subgraphURL,
		gammaLimiter: rate.NewLimiter(gammaRatePerSec, 10),
		dataLimiter:  rate.NewLimiter(dataRatePerSec, 20),
	}
}

// getJSON fetches url through the fallback chain and decodes the body.
// A 404 returns ErrNotFound; chain exhaustion returns ErrUnreachable so
// callers can tell "tried and failed" from "tried and empty".
func (c *Client) getJSON(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	res := c.fetch.Get(ctx, url)
	return c.handle(res, url, out)
}

// postJSON is getJSON for POST bodies. Relays without POST support are
// skipped inside the fetcher.
func (c *Client) postJSON(ctx context.Context, limiter *rate.Limiter, url string, body []byte, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	res := c.fetch.Do(ctx, http.MethodPost, url, body, nil)
	return c.handle(res, url, out)
}

func (c *Client) handle(res *proxyfetch.Result, url string, out any) error {
	switch {
	case res.NotFound():
		return ErrNotFound
	case res.StatusCode == http.StatusServiceUnavailable && res.Provider == "":
		return fmt.Errorf("%w: %s", ErrUnreachable, url)
	case !res.OK():
		return fmt.Errorf("polymarket: status %d from %s: %s", res.StatusCode, url, truncate(res.Body, 200))
	}

	if out == nil {
		return nil
	}
	if err := res.Decode(out); err != nil {
		return err
	}
	if res.Provider != "" {
		slog.Debug("response served via relay", "relay", res.Provider, "url", url)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
