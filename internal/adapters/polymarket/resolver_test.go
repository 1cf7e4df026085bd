package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/adapters/proxyfetch"
)

const (
	eoaAddr   = "0x56687bf447db6ffa42ef4d1201d9e56b3fa8dc34"
	proxyAddr = "0x8ba1f109551bd432803012645ac136ddd64dba72"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(proxyfetch.NewDirectOnly(), srv.URL, srv.URL, srv.URL, srv.URL+"/subgraph")
}

func TestResolveSlugToProxyWallet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "whale-watcher", r.URL.Query().Get("slug"))
		json.NewEncoder(w).Encode(profileResponse{
			Name:        "Whale Watcher",
			Address:     eoaAddr,
			ProxyWallet: proxyAddr,
		})
	}))
	defer srv.Close()

	r := NewResolver(newTestClient(srv))
	got, err := r.Resolve(context.Background(), "whale-watcher")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(proxyAddr).Hex(), got)
}

func TestResolveProxyWalletOverridesLiteralAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, eoaAddr, r.URL.Query().Get("address"))
		json.NewEncoder(w).Encode(profileResponse{
			Address:     eoaAddr,
			ProxyWallet: proxyAddr,
		})
	}))
	defer srv.Close()

	// Even though the input is already a valid address, the directory's
	// proxy wallet wins: positions live under the proxy.
	r := NewResolver(newTestClient(srv))
	got, err := r.Resolve(context.Background(), eoaAddr)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(proxyAddr).Hex(), got)
}

func TestResolveZeroProxyFallsBackToProfileAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(profileResponse{
			Address:     eoaAddr,
			ProxyWallet: "0x0000000000000000000000000000000000000000",
		})
	}))
	defer srv.Close()

	r := NewResolver(newTestClient(srv))
	got, err := r.Resolve(context.Background(), "some-slug")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(eoaAddr).Hex(), got)
}

func TestResolveAddressSurvivesDirectoryOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(newTestClient(srv))
	got, err := r.Resolve(context.Background(), eoaAddr)
	require.NoError(t, err, "a literal address works without the directory")
	assert.Equal(t, common.HexToAddress(eoaAddr).Hex(), got)
}

func TestResolveSlugFailsWithoutDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(newTestClient(srv))
	_, err := r.Resolve(context.Background(), "some-slug")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveCachesPerInput(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		json.NewEncoder(w).Encode(profileResponse{ProxyWallet: proxyAddr})
	}))
	defer srv.Close()

	r := NewResolver(newTestClient(srv))
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "whale-watcher")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestCleanIdentifier(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain address", eoaAddr, eoaAddr},
		{"profile url", "https://polymarket.com/profile/whale-watcher", "whale-watcher"},
		{"www url", "https://www.polymarket.com/profile/whale-watcher", "whale-watcher"},
		{"schemeless url", "polymarket.com/profile/whale-watcher", "whale-watcher"},
		{"at sigil", "@whale-watcher", "whale-watcher"},
		{"query leftovers", "https://polymarket.com/profile/whale?tab=positions", "whale"},
		{"whitespace", "  whale-watcher  ", "whale-watcher"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanIdentifier(tc.in))
		})
	}
}
