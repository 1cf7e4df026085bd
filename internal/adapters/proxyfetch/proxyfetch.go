package proxyfetch

// proxyfetch.go — HTTP fetch with direct-then-relay fallback.
//
// Public CORS relays are unreliable individually but rarely all down at
// once. The fetcher tries the origin first, then walks the relay chain
// until one returns a response that passes shape validation. Callers
// always get a Result; transport failure degrades to a synthetic 503.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	directTimeout = 5 * time.Second
	relayTimeout  = 8 * time.Second

	maxBodyBytes = 4 << 20
)

// Result is the response-shaped value every call produces. StatusCode 503
// with an {"error": ...} body marks chain exhaustion.
type Result struct {
	StatusCode int
	Body       []byte
	Provider   string // empty for direct responses
}

// OK reports a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NotFound reports a terminal 404, "looked, nothing there", which is a
// valid answer, unlike an unreachable upstream.
func (r *Result) NotFound() bool {
	return r.StatusCode == http.StatusNotFound
}

// Decode unmarshals the body into out.
func (r *Result) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("proxyfetch: decode body: %w", err)
	}
	return nil
}

// Fetcher resolves requests through the direct/relay chain.
type Fetcher struct {
	direct  *http.Client
	relayed *http.Client
	relays  []relay
	nowNano func() int64 // cache-buster source, injectable for tests
}

// New creates a Fetcher with the default relay chain.
func New() *Fetcher {
	return &Fetcher{
		direct:  &http.Client{Timeout: directTimeout},
		relayed: &http.Client{Timeout: relayTimeout},
		relays:  defaultRelays,
		nowNano: func() int64 { return time.Now().UnixNano() },
	}
}

// NewDirectOnly creates a Fetcher without the relay chain, for origins
// that are known reachable (local nodes, test servers).
func NewDirectOnly() *Fetcher {
	f := New()
	f.relays = nil
	return f
}

// Get is shorthand for Do with no body.
func (f *Fetcher) Get(ctx context.Context, url string) *Result {
	return f.Do(ctx, http.MethodGet, url, nil, nil)
}

// Do attempts the request directly, then through each relay supporting
// the method. The first response passing validation wins.
func (f *Fetcher) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) *Result {
	if res, err := f.attemptDirect(ctx, method, url, body, headers); err == nil {
		return res
	} else {
		slog.Debug("direct fetch failed, entering relay chain", "url", url, "err", err)
	}

	var lastErr error
	for _, rl := range f.relays {
		if !rl.supports(method) {
			continue
		}
		res, err := f.attemptRelay(ctx, rl, method, url, body, headers)
		if err != nil {
			lastErr = err
			slog.Debug("relay attempt failed", "relay", rl.name, "err", err)
			continue
		}
		return res
	}

	msg := "all fetch attempts failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	errBody, _ := json.Marshal(map[string]string{"error": msg})
	return &Result{StatusCode: http.StatusServiceUnavailable, Body: errBody}
}

// attemptDirect issues the request against the origin with the short timeout.
func (f *Fetcher) attemptDirect(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Result, error) {
	status, respBody, err := f.roundTrip(ctx, f.direct, method, url, body, headers)
	if err != nil {
		return nil, err
	}
	if !acceptable(status, respBody) {
		return nil, fmt.Errorf("direct response rejected by validator (status %d)", status)
	}
	return &Result{StatusCode: status, Body: respBody}, nil
}

// attemptRelay wraps the target URL per the relay's quirks and unwraps
// enveloped payloads before validation.
func (f *Fetcher) attemptRelay(ctx context.Context, rl relay, method, url string, body []byte, headers map[string]string) (*Result, error) {
	// Shared relay caches would otherwise serve a stale copy of a URL we
	// polled seconds ago.
	wrapped := rl.wrap(bustCache(url, f.nowNano()))

	status, respBody, err := f.roundTrip(ctx, f.relayed, method, wrapped, body, headers)
	if err != nil {
		return nil, err
	}

	if rl.enveloped {
		status, respBody, err = unwrapEnvelope(respBody)
		if err != nil {
			return nil, fmt.Errorf("relay %s: %w", rl.name, err)
		}
	}

	if !acceptable(status, respBody) {
		return nil, fmt.Errorf("relay %s response rejected (status %d)", rl.name, status)
	}
	return &Result{StatusCode: status, Body: respBody, Provider: rl.name}, nil
}

func (f *Fetcher) roundTrip(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string) (int, []byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// acceptable decides whether a (status, body) pair is a usable terminal
// answer. 404 passes: "not found" is information, not failure. 2xx must
// carry a JSON-shaped body; relays and captive portals love returning
// HTML error pages with status 200.
func acceptable(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	if status < 200 || status >= 300 {
		return false
	}
	return looksLikeJSON(body)
}

// looksLikeJSON rejects HTML masquerading as a successful payload.
func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] == '<' {
		return false
	}
	return json.Valid(trimmed)
}

// bustCache appends a throwaway query parameter so shared relay caches
// never coalesce two polls of the same URL.
func bustCache(url string, nano int64) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_cb=%d", url, sep, nano)
}

// envelopePayload is the allorigins-style wrapper around a proxied response.
type envelopePayload struct {
	Contents string `json:"contents"`
	Status   struct {
		HTTPCode int `json:"http_code"`
	} `json:"status"`
}

// unwrapEnvelope extracts the inner body and status from an enveloped
// relay response. The outer request can be 200 while the inner one
// failed, so the inner code is the one that counts.
func unwrapEnvelope(body []byte) (int, []byte, error) {
	var env envelopePayload
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, nil, fmt.Errorf("unwrap envelope: %w", err)
	}
	status := env.Status.HTTPCode
	if status == 0 {
		status = http.StatusOK
	}
	return status, []byte(env.Contents), nil
}
