package polymarket

// trading.go — order execution against the Polymarket CLOB.
//
// Simulation and live share every step up to the network call: sizing,
// side/outcome resolution, and token handling are identical, so
// flipping modes never changes observed sizing behavior.

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

const (
	// PlaceholderTokenID marks an order built from an undecoded signal.
	// The exchange is expected to reject it; the executor never invents
	// tradable intent from incomplete signals.
	PlaceholderTokenID = "0x0-unresolved-token"

	// orderTTL bounds how long a copy order may rest before expiring.
	orderTTL = 300 * time.Second

	// simLatency models realistic submission latency in simulation.
	simLatency = 800 * time.Millisecond

	microUSDC = 1_000_000
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg        string `json:"errorMsg"`
	OrderID         string `json:"orderID"`
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	Success         bool   `json:"success"`
}

// Executor implements ports.OrderExecutor. In simulation mode auth may
// be nil; live mode requires it.
type Executor struct {
	auth       *AuthClient
	multiplier float64
	simulate   bool
	simDelay   time.Duration
	now        func() time.Time
}

// NewExecutor creates an Executor. multiplier scales the detected
// signal size; values <= 0 fall back to an exact 1:1 copy.
func NewExecutor(auth *AuthClient, multiplier float64, simulate bool) *Executor {
	if multiplier <= 0 {
		multiplier = 1
	}
	return &Executor{
		auth:       auth,
		multiplier: multiplier,
		simulate:   simulate,
		simDelay:   simLatency,
		now:        time.Now,
	}
}

// Execute sizes, signs, and submits a copy of the signal.
func (e *Executor) Execute(ctx context.Context, sig domain.TradeSignal) domain.ExecutionResult {
	// Exact-copy sizing scaled by one multiplier, floored so the copy
	// never over-commits versus the detected signal.
	amount := int64(math.Floor(sig.SizeUSD * e.multiplier))

	side, outcome := resolveSideOutcome(sig)

	tokenID := sig.TokenID
	if tokenID == "" {
		tokenID = PlaceholderTokenID
	}

	res := domain.ExecutionResult{
		AmountUSD: amount,
		Market:    sig.MarketLabel,
		Outcome:   outcome,
		TokenID:   tokenID,
		Side:      side,
		Simulated: e.simulate,
		At:        e.now().UTC(),
	}

	if amount <= 0 {
		res.Err = fmt.Sprintf("order sized to zero (signal $%.2f × %.2f)", sig.SizeUSD, e.multiplier)
		return res
	}

	if e.simulate {
		return e.executeSimulated(ctx, res)
	}
	return e.executeLive(ctx, res, sig.NegRisk)
}

// verifyingContract picks the EIP-712 signing domain. Neg-risk markets
// settle on a separate exchange; signing against the wrong one is a
// guaranteed rejection.
func verifyingContract(negRisk bool) gomodel.VerifyingContract {
	if negRisk {
		return gomodel.NegRiskCTFExchange
	}
	return gomodel.CTFExchange
}

// resolveSideOutcome prefers the explicit side carried by the signal and
// infers the missing half: BUY leans YES, SELL leans NO.
func resolveSideOutcome(sig domain.TradeSignal) (domain.Side, domain.Outcome) {
	side := sig.Side
	outcome := sig.Outcome

	if side == "" {
		if outcome == domain.OutcomeNo {
			side = domain.SideSell
		} else {
			side = domain.SideBuy
		}
	}
	if outcome == "" {
		if side == domain.SideBuy {
			outcome = domain.OutcomeYes
		} else {
			outcome = domain.OutcomeNo
		}
	}
	return side, outcome
}

// executeSimulated synthesizes a successful submission after a
// realistic delay.
func (e *Executor) executeSimulated(ctx context.Context, res domain.ExecutionResult) domain.ExecutionResult {
	select {
	case <-ctx.Done():
		res.Err = ctx.Err().Error()
		return res
	case <-time.After(e.simDelay):
	}

	res.OrderID = "sim-" + uuid.NewString()
	res.TxHash = fabricatedTxHash()
	slog.Info("simulated order filled",
		"market", res.Market, "side", res.Side, "amount_usd", res.AmountUSD)
	return res
}

// executeLive signs an EIP-712 order and submits it over authenticated REST.
func (e *Executor) executeLive(ctx context.Context, res domain.ExecutionResult, negRisk bool) domain.ExecutionResult {
	if e.auth == nil {
		res.Err = "signing credential not configured"
		return res
	}
	if err := e.auth.EnsureCreds(ctx); err != nil {
		res.Err = err.Error()
		return res
	}

	micro := strconv.FormatInt(res.AmountUSD*microUSDC, 10)

	orderSide := gomodel.BUY
	sideStr := "BUY"
	if res.Side == domain.SideSell {
		orderSide = gomodel.SELL
		sideStr = "SELL"
	}

	expiration := e.now().Add(orderTTL).Unix()

	// Marketable copy order: maker and taker amounts mirror the signal's
	// USD size in 6-decimal base units. The salt nonce comes from the
	// order builder.
	orderData := &gomodel.OrderData{
		Maker:         e.auth.Address(),
		Taker:         zeroAddress,
		TokenId:       res.TokenID,
		MakerAmount:   micro,
		TakerAmount:   micro,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        e.auth.Address(),
		Expiration:    strconv.FormatInt(expiration, 10),
		Side:          orderSide,
		SignatureType: gomodel.EOA,
	}

	signed, err := e.auth.orderBuilder.BuildSignedOrder(e.auth.privateKey, orderData, verifyingContract(negRisk))
	if err != nil {
		res.Err = fmt.Sprintf("sign order: %v", err)
		return res
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       res.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          sideStr,
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     e.auth.creds.APIKey,
		OrderType: "GTC",
	}

	var resp clobOrderResponse
	if err := e.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		res.Err = err.Error()
		return res
	}
	if !resp.Success || resp.ErrorMsg != "" {
		res.Err = resp.ErrorMsg
		if res.Err == "" {
			res.Err = "order rejected with status " + resp.Status
		}
		return res
	}

	res.OrderID = resp.OrderID
	res.TxHash = resp.TransactionHash
	slog.Info("live order submitted",
		"order_id", res.OrderID, "market", res.Market,
		"side", res.Side, "amount_usd", res.AmountUSD)
	return res
}

// CancelOrder cancels a single order by its CLOB order id.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) error {
	if e.simulate {
		return nil
	}
	if e.auth == nil {
		return fmt.Errorf("cancel order: signing credential not configured")
	}
	if err := e.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel order: creds: %w", err)
	}
	if err := e.auth.doL2(ctx, http.MethodDelete, "/order/"+orderID, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// CancelAll cancels every open order owned by the executing wallet.
func (e *Executor) CancelAll(ctx context.Context) error {
	if e.simulate {
		return nil
	}
	if e.auth == nil {
		return fmt.Errorf("cancel all: signing credential not configured")
	}
	if err := e.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel all: creds: %w", err)
	}
	if err := e.auth.doL2(ctx, http.MethodDelete, "/orders", nil, nil); err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// fabricatedTxHash returns a random hash for simulated submissions.
func fabricatedTxHash() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "0x" + hex.EncodeToString([]byte(uuid.NewString()))[:64]
	}
	return "0x" + hex.EncodeToString(b[:])
}
