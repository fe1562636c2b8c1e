package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeGateway charges cards synchronously through the Stripe API.
// Constructor-injected instead of the package-level stripe key so tests can
// swap it for a mock.
type StripeGateway struct {
	sc *client.API
}

// NewStripeGateway creates a stripe gateway with its own API client.
func NewStripeGateway(secretKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{sc: sc}
}

func (g *StripeGateway) Name() checkout.GatewayName { return checkout.GatewayStripe }

func (g *StripeGateway) Tokenize(ctx context.Context, card CardDetails) (string, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(card.ExpMonth),
			ExpYear:  stripe.Int64(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
	}
	params.Context = ctx

	pm, err := g.sc.PaymentMethods.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return pm.ID, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Method.Token == "" {
		return nil, domainErrors.NewValidationError("token", "card charges require a payment method token")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.Method.Token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.AddMetadata("checkout_session_id", req.SessionID)
	// The charge is idempotent at the gateway: retrying the same attempt
	// after a network error must not double-charge.
	params.SetIdempotencyKey(req.SessionID + ":" + req.Method.Token)

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	return &ChargeResult{
		GatewayReference: pi.ID,
		Status:           mapIntentStatus(pi.Status),
		DeclineReason:    declineReason(pi),
	}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, gatewayReference string) (*VerifyResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.Get(gatewayReference, params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	return &VerifyResult{
		GatewayReference: pi.ID,
		Status:           mapIntentStatus(pi.Status),
		AmountCents:      pi.Amount,
		Currency:         strings.ToUpper(string(pi.Currency)),
		DeclineReason:    declineReason(pi),
		SessionID:        pi.Metadata["checkout_session_id"],
	}, nil
}

func mapIntentStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		// requires_action, requires_confirmation, processing and friends are
		// all still in flight from our point of view.
		return StatusPending
	}
}

func declineReason(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError != nil {
		if pi.LastPaymentError.DeclineCode != "" {
			return string(pi.LastPaymentError.DeclineCode)
		}
		return pi.LastPaymentError.Msg
	}
	return ""
}

// mapStripeError folds the SDK error taxonomy into the domain taxonomy.
func mapStripeError(err error) error {
	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		return fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnavailable, err)
	}

	// The SDK has no dedicated auth error type; a bad or revoked API key
	// comes back as 401.
	if sErr.HTTPStatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", domainErrors.ErrGatewayAuth, sErr.Msg)
	}

	switch sErr.Type {
	case stripe.ErrorTypeCard:
		msg := sErr.Msg
		if sErr.DeclineCode != "" {
			msg = string(sErr.DeclineCode)
		}
		return domainErrors.NewDomainError("card_declined", msg, domainErrors.ErrGatewayRejected)
	case stripe.ErrorTypeInvalidRequest:
		return domainErrors.NewDomainError("gateway_rejected", sErr.Msg, domainErrors.ErrGatewayRejected)
	default:
		return fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnavailable, sErr.Msg)
	}
}
