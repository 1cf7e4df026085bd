package polymarket

import (
	"context"
	"strings"
	"testing"
	"time"

	gomodel "github.com/polymarket/go-order-utils/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
)

func newSimExecutor(multiplier float64) *Executor {
	e := NewExecutor(nil, multiplier, true)
	e.simDelay = 0
	return e
}

func signal(sizeUSD float64) domain.TradeSignal {
	return domain.TradeSignal{
		MarketLabel: "Rain tomorrow?",
		TokenID:     "tok1",
		Outcome:     domain.OutcomeYes,
		Side:        domain.SideBuy,
		SizeUSD:     sizeUSD,
	}
}

func TestExecuteSizingFloorsToWholeDollars(t *testing.T) {
	e := newSimExecutor(1.5)

	res := e.Execute(context.Background(), signal(237.90))
	require.True(t, res.Success(), res.Err)
	assert.Equal(t, int64(356), res.AmountUSD, "floor(237.90 × 1.5)")

	res = e.Execute(context.Background(), signal(50))
	assert.Equal(t, int64(75), res.AmountUSD)
}

func TestExecuteMultiplierDefaultsToOneToOne(t *testing.T) {
	e := newSimExecutor(0)
	res := e.Execute(context.Background(), signal(42.99))
	assert.Equal(t, int64(42), res.AmountUSD)
}

func TestExecuteZeroSizedOrderFails(t *testing.T) {
	e := newSimExecutor(1)
	res := e.Execute(context.Background(), signal(0.40))
	assert.False(t, res.Success())
	assert.Contains(t, res.Err, "sized to zero")
}

func TestExecuteSimulatedFabricatesReceipt(t *testing.T) {
	e := newSimExecutor(1)
	res := e.Execute(context.Background(), signal(50))

	require.True(t, res.Success())
	assert.True(t, res.Simulated)
	assert.True(t, strings.HasPrefix(res.OrderID, "sim-"), res.OrderID)
	assert.True(t, strings.HasPrefix(res.TxHash, "0x"), res.TxHash)
	assert.Len(t, res.TxHash, 66)
}

func TestExecuteSimulationRespectsContext(t *testing.T) {
	e := NewExecutor(nil, 1, true)
	e.simDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Execute(ctx, signal(50))
	assert.False(t, res.Success())
}

func TestExecuteUsesPlaceholderForUndecodedToken(t *testing.T) {
	e := newSimExecutor(1)
	sig := signal(50)
	sig.TokenID = ""

	res := e.Execute(context.Background(), sig)
	assert.Equal(t, PlaceholderTokenID, res.TokenID)
}

func TestResolveSideOutcome(t *testing.T) {
	cases := []struct {
		name        string
		side        domain.Side
		outcome     domain.Outcome
		wantSide    domain.Side
		wantOutcome domain.Outcome
	}{
		{"both explicit", domain.SideSell, domain.OutcomeYes, domain.SideSell, domain.OutcomeYes},
		{"buy infers yes", domain.SideBuy, "", domain.SideBuy, domain.OutcomeYes},
		{"sell infers no", domain.SideSell, "", domain.SideSell, domain.OutcomeNo},
		{"no infers sell", "", domain.OutcomeNo, domain.SideSell, domain.OutcomeNo},
		{"nothing defaults buy yes", "", "", domain.SideBuy, domain.OutcomeYes},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			side, outcome := resolveSideOutcome(domain.TradeSignal{Side: tc.side, Outcome: tc.outcome})
			assert.Equal(t, tc.wantSide, side)
			assert.Equal(t, tc.wantOutcome, outcome)
		})
	}
}

func TestVerifyingContractFollowsSignalExchange(t *testing.T) {
	assert.Equal(t, gomodel.CTFExchange, verifyingContract(false))
	assert.Equal(t, gomodel.NegRiskCTFExchange, verifyingContract(true),
		"neg-risk copies sign against the neg-risk exchange")
}

func TestLiveWithoutAuthFailsClosed(t *testing.T) {
	e := NewExecutor(nil, 1, false)
	res := e.Execute(context.Background(), signal(50))
	assert.False(t, res.Success())
	assert.Contains(t, res.Err, "credential")
}

func TestCancelIsNoOpInSimulation(t *testing.T) {
	e := newSimExecutor(1)
	assert.NoError(t, e.CancelOrder(context.Background(), "any"))
	assert.NoError(t, e.CancelAll(context.Background()))
}

func TestValidPrivateKey(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	assert.True(t, ValidPrivateKey(valid))
	assert.True(t, ValidPrivateKey("0x"+valid))
	assert.False(t, ValidPrivateKey(valid[:62]))
	assert.False(t, ValidPrivateKey(valid+"ab"))
	assert.False(t, ValidPrivateKey(strings.Repeat("zz", 32)))
	assert.False(t, ValidPrivateKey(""))
}

func TestNewAuthClientRejectsMalformedKey(t *testing.T) {
	_, err := NewAuthClient("", "not-a-key")
	assert.Error(t, err)

	ac, err := NewAuthClient("", "0x"+strings.Repeat("11", 32))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ac.Address(), "0x"))
}
