package gateway

import (
	"context"
	"testing"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_CardChargeSucceedsSynchronously(t *testing.T) {
	g := NewMockGateway(checkout.GatewayStripe)
	ctx := context.Background()

	token, err := g.Tokenize(ctx, CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	res, err := g.Charge(ctx, ChargeRequest{
		SessionID:   "sess-1",
		AmountCents: 50000,
		Currency:    "MZN",
		Method:      MethodDetails{Kind: checkout.MethodCard, Token: token},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.NotEmpty(t, res.GatewayReference)
}

func TestMockGateway_AsyncChargeIsPendingUntilSettled(t *testing.T) {
	g := NewMockGateway(checkout.GatewayPaytek)
	ctx := context.Background()

	res, err := g.Charge(ctx, ChargeRequest{
		SessionID:   "sess-2",
		AmountCents: 10000,
		Currency:    "MZN",
		Method:      MethodDetails{Kind: checkout.MethodBankTransfer, BankCode: "BIM", AccountNumber: "000123"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	v, err := g.Verify(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, v.Status)
	assert.Equal(t, "sess-2", v.SessionID)

	g.Settle(res.GatewayReference)

	v, err = g.Verify(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Equal(t, int64(10000), v.AmountCents)
}

func TestMockGateway_VerifyIsRepeatSafe(t *testing.T) {
	g := NewMockGateway(checkout.GatewayPaytek)
	ctx := context.Background()

	res, err := g.Charge(ctx, ChargeRequest{
		SessionID: "sess-3", AmountCents: 100, Currency: "MZN",
		Method: MethodDetails{Kind: checkout.MethodMobileMoney, PhoneNumber: "+258840000000"},
	})
	require.NoError(t, err)
	g.Settle(res.GatewayReference)

	for i := 0; i < 3; i++ {
		v, err := g.Verify(ctx, res.GatewayReference)
		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, v.Status)
	}
	assert.Equal(t, 3, g.VerifyCalls())
}

func TestMockGateway_VerifyUnknownReference(t *testing.T) {
	g := NewMockGateway(checkout.GatewayStripe)

	_, err := g.Verify(context.Background(), "no_such_ref")
	assert.ErrorIs(t, err, domainErrors.ErrTransactionNotFound)
}

func TestMockGateway_FailureRate(t *testing.T) {
	g := NewMockGateway(checkout.GatewayStripe, WithFailureRate(1.0))

	_, err := g.Charge(context.Background(), ChargeRequest{
		SessionID: "sess-4", AmountCents: 100, Currency: "MZN",
		Method: MethodDetails{Kind: checkout.MethodCard, Token: "pm_x"},
	})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayRejected)
}

func TestMockGateway_TimeoutRate(t *testing.T) {
	g := NewMockGateway(checkout.GatewayPaytek, WithTimeoutRate(1.0))

	_, err := g.Charge(context.Background(), ChargeRequest{
		SessionID: "sess-5", AmountCents: 100, Currency: "MZN",
		Method: MethodDetails{Kind: checkout.MethodMobileMoney},
	})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}
