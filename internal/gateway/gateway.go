package gateway

import (
	"context"

	"github.com/aulaviva/checkout/internal/domain/checkout"
)

// Status is the gateway-side outcome of a charge or verification.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// CardDetails carries raw card data into tokenization. It is never persisted
// and never crosses a repository boundary.
type CardDetails struct {
	Number     string
	ExpMonth   int64
	ExpYear    int64
	CVC        string
	HolderName string
}

// MethodDetails carries the provider/account references needed to charge a
// selected payment method. Token is set for cards; the remaining fields are
// used by reference-based methods.
type MethodDetails struct {
	Kind          checkout.MethodKind
	Token         string
	Provider      string
	PhoneNumber   string
	BankCode      string
	AccountNumber string
}

// ChargeRequest is a single charge attempt against a gateway.
type ChargeRequest struct {
	// SessionID is the checkout session id, attached to the remote charge as
	// merchant metadata so verification can map a reference back to us.
	SessionID   string
	AmountCents int64
	Currency    string
	Method      MethodDetails
}

// ChargeResult is the gateway's answer to a charge attempt.
type ChargeResult struct {
	GatewayReference string
	Status           Status
	DeclineReason    string
}

// VerifyResult is the gateway's answer to a verification read.
type VerifyResult struct {
	GatewayReference string
	Status           Status
	AmountCents      int64
	Currency         string
	DeclineReason    string
	// SessionID echoes back the merchant metadata attached at charge time,
	// when the gateway supports it. Used to materialize missing local records.
	SessionID string
}

// Gateway is the capability interface over payment providers.
type Gateway interface {
	// Name returns the gateway name.
	Name() checkout.GatewayName

	// Tokenize exchanges raw card details for an opaque payment method token.
	// Only the card gateway implements this meaningfully.
	Tokenize(ctx context.Context, card CardDetails) (string, error)

	// Charge submits a charge. Synchronous gateways answer succeeded or
	// failed; asynchronous ones answer pending and confirm out of band.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// Verify reads the current state of a prior charge by reference. It is a
	// pure read with no side effect on the remote charge and must be safe to
	// call repeatedly.
	Verify(ctx context.Context, gatewayReference string) (*VerifyResult, error)
}
