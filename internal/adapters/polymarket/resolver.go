package polymarket

// resolver.go — target-identifier resolution.
//
// The exchange records positions under a smart-contract proxy wallet,
// not the EOA the user types in. When the directory reports a proxy
// wallet, that address wins over the literal input; every downstream
// lookup depends on getting this right.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnresolved means no trading address could be derived from the input.
var ErrUnresolved = errors.New("polymarket: identifier could not be resolved")

var profilePrefixes = []string{
	"https://polymarket.com/profile/",
	"http://polymarket.com/profile/",
	"https://www.polymarket.com/profile/",
	"polymarket.com/profile/",
}

// Resolver maps user-supplied identifiers to canonical trading addresses.
// Results are cached per input string for the session; a changed target
// is a different cache key, so no invalidation is needed.
type Resolver struct {
	client *Client

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a Resolver backed by the user-directory API.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client, cache: make(map[string]string)}
}

// Resolve returns the canonical trading address for the identifier.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (string, error) {
	r.mu.Lock()
	if addr, ok := r.cache[identifier]; ok {
		r.mu.Unlock()
		return addr, nil
	}
	r.mu.Unlock()

	addr, err := r.resolve(ctx, identifier)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[identifier] = addr
	r.mu.Unlock()
	return addr, nil
}

func (r *Resolver) resolve(ctx context.Context, identifier string) (string, error) {
	cleaned := CleanIdentifier(identifier)
	if cleaned == "" {
		return "", ErrUnresolved
	}

	isAddr := common.IsHexAddress(cleaned)

	profile, err := r.LookupProfile(ctx, cleaned, isAddr)
	if err != nil {
		// Directory down. A literal address still works verbatim; a slug
		// cannot be resolved without the directory.
		if isAddr {
			slog.Warn("directory lookup failed, using input address verbatim",
				"input", cleaned, "err", err)
			return common.HexToAddress(cleaned).Hex(), nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnresolved, cleaned)
	}

	if proxy := profile.ProxyWallet; !isZeroAddr(proxy) {
		// Proxy wallet is authoritative: positions live under it, not
		// under the EOA, even when the input was already an address.
		return common.HexToAddress(proxy).Hex(), nil
	}
	if !isZeroAddr(profile.Address) {
		return common.HexToAddress(profile.Address).Hex(), nil
	}
	if isAddr {
		return common.HexToAddress(cleaned).Hex(), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnresolved, cleaned)
}

// LookupProfile queries the user directory by address or slug.
func (r *Resolver) LookupProfile(ctx context.Context, cleaned string, isAddr bool) (*profileResponse, error) {
	var u string
	if isAddr {
		u = fmt.Sprintf("%s/profile?address=%s", r.client.dataBase, url.QueryEscape(strings.ToLower(cleaned)))
	} else {
		u = fmt.Sprintf("%s/profile?slug=%s", r.client.dataBase, url.QueryEscape(cleaned))
	}

	var profile profileResponse
	if err := r.client.getJSON(ctx, r.client.dataLimiter, u, &profile); err != nil {
		return nil, fmt.Errorf("polymarket.LookupProfile: %w", err)
	}
	return &profile, nil
}

// CleanIdentifier strips profile-URL prefixes, the @ sigil, and
// surrounding whitespace from a user-supplied target.
func CleanIdentifier(identifier string) string {
	s := strings.TrimSpace(identifier)
	for _, p := range profilePrefixes {
		if strings.HasPrefix(strings.ToLower(s), p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.TrimPrefix(s, "@")
	// slugs never contain path or query leftovers
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func isZeroAddr(s string) bool {
	if s == "" {
		return true
	}
	if !common.IsHexAddress(s) {
		return true
	}
	return common.HexToAddress(s) == (common.Address{})
}
