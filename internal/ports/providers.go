package ports

import (
	"context"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

// WalletResolver maps a user-supplied identifier (address, profile URL,
// or slug) to the canonical on-chain trading address.
type WalletResolver interface {
	// Resolve returns the trading address for the identifier. When the
	// directory reports a proxy wallet, that address is authoritative
	// over the literal input. Returns ErrUnresolved from the adapter
	// when nothing can be derived.
	Resolve(ctx context.Context, identifier string) (string, error)
}

// MarketCatalog is the cached market-metadata lookup.
type MarketCatalog interface {
	// GetOne returns the market for a CLOB token id, or nil when unknown.
	GetOne(ctx context.Context, tokenID string) (*domain.Market, error)

	// GetBatch resolves many ids at once, chunked to respect upstream
	// query-length limits. Partial chunk failures do not abort the rest;
	// the returned map contains whatever resolved.
	GetBatch(ctx context.Context, ids []string, kind domain.MarketKeyKind) (map[string]domain.Market, error)
}

// PositionProvider fetches the target's open positions from the
// available backends.
type PositionProvider interface {
	// FetchPositions merges positions across backends and candidate
	// addresses. A nil slice with ErrNoBackend means no backend could
	// be contacted; an empty slice means contact succeeded with zero
	// open positions. The distinction is load-bearing for the caller.
	FetchPositions(ctx context.Context, address, originalInput string) ([]domain.Position, error)
}

// OrderProvider fetches the target's resting orders.
type OrderProvider interface {
	FetchOpenOrders(ctx context.Context, address, originalInput string) ([]domain.OpenOrder, error)
}

// FillProvider fetches recent settled trades for an address, newest first.
type FillProvider interface {
	FetchFills(ctx context.Context, address string, limit int) ([]domain.Fill, error)
}

// PendingScanner inspects the connected node's pending block for
// transactions from the target to the exchange contract.
type PendingScanner interface {
	// ScanPending returns decoded pending trades plus the count of
	// matching-but-undecodable transactions seen this scan.
	ScanPending(ctx context.Context, target string) ([]domain.TradeSignal, int, error)
}
