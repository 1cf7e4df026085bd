package chain

// mempool.go — pending-transaction channel.
//
// Pulls the node's pending block and looks for transactions from the
// target to a known exchange contract. The from/to prefilter runs
// before any ABI work; pending blocks can carry thousands of
// transactions and decoding is the expensive part.

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
	"github.com/veranoksenfeld/PolyBot-Pro/internal/ports"
)

// Polymarket exchange contracts on Polygon (lowercase hex). The value
// marks the neg-risk exchange, which needs its own signing domain.
var exchangeContracts = map[string]bool{
	"0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e": false, // CTFExchange
	"0xc5d563a36ae78145c45a50134d48a1215220f80a": true,  // NegRiskCTFExchange
}

const fillOrderABIJSON = `[{
	"name": "fillOrder",
	"type": "function",
	"inputs": [
		{"name": "order", "type": "tuple", "components": [
			{"name": "salt",          "type": "uint256"},
			{"name": "maker",         "type": "address"},
			{"name": "signer",        "type": "address"},
			{"name": "taker",         "type": "address"},
			{"name": "tokenId",       "type": "uint256"},
			{"name": "makerAmount",   "type": "uint256"},
			{"name": "takerAmount",   "type": "uint256"},
			{"name": "expiration",    "type": "uint256"},
			{"name": "nonce",         "type": "uint256"},
			{"name": "feeRateBps",    "type": "uint256"},
			{"name": "side",          "type": "uint8"},
			{"name": "signatureType", "type": "uint8"},
			{"name": "signature",     "type": "bytes"}
		]},
		{"name": "fillAmount", "type": "uint256"}
	],
	"outputs": []
}]`

var fillOrderABI abi.ABI

func init() {
	var err error
	fillOrderABI, err = abi.JSON(strings.NewReader(fillOrderABIJSON))
	if err != nil {
		panic("fillOrder abi: " + err.Error())
	}
}

// exchangeOrder mirrors the on-chain Order tuple for ABI conversion.
type exchangeOrder struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenId       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
	Signature     []byte
}

// rpcTx is the subset of a pending transaction the scanner needs.
type rpcTx struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
}

// rpcBlock is the pending block with full transaction objects.
type rpcBlock struct {
	Number       string  `json:"number"`
	Transactions []rpcTx `json:"transactions"`
}

// Scanner implements ports.PendingScanner over a JSON-RPC node.
type Scanner struct {
	rpc     *rpc.Client
	catalog ports.MarketCatalog
	now     func() time.Time
}

// NewScanner dials the node. Market-name resolution through the catalog
// is best-effort and never blocks signal emission.
func NewScanner(rpcURL string, catalog ports.MarketCatalog) (*Scanner, error) {
	client, err := rpc.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}
	return &Scanner{rpc: client, catalog: catalog, now: time.Now}, nil
}

// Close releases the RPC connection.
func (s *Scanner) Close() {
	s.rpc.Close()
}

// ScanPending returns decoded trade signals from the pending block plus
// the count of matching-but-undecodable transactions.
func (s *Scanner) ScanPending(ctx context.Context, target string) ([]domain.TradeSignal, int, error) {
	var block *rpcBlock
	if err := s.rpc.CallContext(ctx, &block, "eth_getBlockByNumber", "pending", true); err != nil {
		return nil, 0, fmt.Errorf("chain.ScanPending: %w", err)
	}
	if block == nil {
		// Some endpoints refuse pending-block queries; degrade quietly.
		return nil, 0, nil
	}

	targetLower := strings.ToLower(target)
	var signals []domain.TradeSignal
	undecodable := 0

	for _, tx := range block.Transactions {
		if !strings.EqualFold(tx.From, targetLower) {
			continue
		}
		negRisk, isExchange := exchangeContracts[strings.ToLower(tx.To)]
		if !isExchange {
			continue
		}

		sig, ok := s.decodeFill(ctx, tx, negRisk)
		if !ok {
			undecodable++
			continue
		}
		signals = append(signals, sig)
	}

	return signals, undecodable, nil
}

// decodeFill decodes a transaction's input against the exchange
// fillOrder signature. Any mismatch makes the transaction "present but
// undecodable": reported, never fatal.
func (s *Scanner) decodeFill(ctx context.Context, tx rpcTx, negRisk bool) (domain.TradeSignal, bool) {
	input, err := hex.DecodeString(strings.TrimPrefix(tx.Input, "0x"))
	if err != nil || len(input) < 4 {
		return domain.TradeSignal{}, false
	}

	method := fillOrderABI.Methods["fillOrder"]
	if !strings.EqualFold(hex.EncodeToString(input[:4]), hex.EncodeToString(method.ID)) {
		return domain.TradeSignal{}, false
	}

	vals, err := method.Inputs.Unpack(input[4:])
	if err != nil || len(vals) < 2 {
		return domain.TradeSignal{}, false
	}

	order, ok := abi.ConvertType(vals[0], new(exchangeOrder)).(*exchangeOrder)
	if !ok {
		return domain.TradeSignal{}, false
	}

	side := domain.SideBuy
	outcome := domain.OutcomeYes
	if order.Side == 1 {
		side = domain.SideSell
		outcome = domain.OutcomeNo
	}

	tokenID := order.TokenId.String()
	usd := microToUSD(order.TakerAmount)

	label := tokenID
	if s.catalog != nil {
		if m, err := s.catalog.GetOne(ctx, tokenID); err == nil && m != nil {
			label = m.Label()
		}
	}

	return domain.TradeSignal{
		Channel:     domain.ChannelMempool,
		MarketLabel: label,
		TokenID:     tokenID,
		Outcome:     outcome,
		Side:        side,
		SizeUSD:     usd,
		NegRisk:     negRisk,
		DedupKey:    strings.ToLower(tx.Hash),
		TxHash:      tx.Hash,
		DetectedAt:  s.now().UTC(),
	}, true
}

// microToUSD converts a 6-decimal fixed-point amount to USD.
func microToUSD(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(1e6),
	).Float64()
	return f
}
