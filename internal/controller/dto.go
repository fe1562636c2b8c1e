package controller

import (
	"time"

	appCheckout "github.com/aulaviva/checkout/internal/application/checkout"
	"github.com/aulaviva/checkout/internal/application/reconcile"
	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/domain/transaction"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string for IDs,
// validation tags). Controllers convert these to use case requests before
// calling business logic.

// StartCheckoutRequest holds the input for opening a checkout session. The
// content payload is the raw item as the storefront knows it; the identifier
// and price are resolved server-side from it.
type StartCheckoutRequest struct {
	ContentType string         `json:"content_type" validate:"required"`
	Content     map[string]any `json:"content" validate:"required"`
}

// SelectMethodRequest holds the chosen payment method for a session.
type SelectMethodRequest struct {
	Kind    string            `json:"kind" validate:"required,oneof=card mobile_money bank_transfer"`
	Display map[string]string `json:"display,omitempty"`
}

// PaymentDataRequest carries the charge references for the selected method.
// Token is the tokenized card; the remaining fields are used by
// reference-based methods.
type PaymentDataRequest struct {
	Token         string `json:"token,omitempty"`
	Provider      string `json:"provider,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// PayRequest holds the input for charging a session. Amount and currency are
// the price the buyer saw; they are validated server-side, never charged
// as-is.
type PayRequest struct {
	Amount      float64            `json:"amount" validate:"required,gt=0"`
	Currency    string             `json:"currency" validate:"required,len=3"`
	MethodKind  string             `json:"method_kind" validate:"required,oneof=card mobile_money bank_transfer"`
	PaymentData PaymentDataRequest `json:"payment_data"`
}

// ProcessPaymentRequest is the one-shot start+method+pay input used by the
// mobile client.
type ProcessPaymentRequest struct {
	ContentType string             `json:"content_type" validate:"required"`
	Content     map[string]any     `json:"content" validate:"required"`
	MethodKind  string             `json:"payment_method_kind" validate:"required,oneof=card mobile_money bank_transfer"`
	PaymentData PaymentDataRequest `json:"payment_data"`
	Display     map[string]string  `json:"display,omitempty"`
}

// ResendConfirmationRequest identifies the settled charge to re-notify.
type ResendConfirmationRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
}

// TokenizeRequest carries raw card details for server-side tokenization.
type TokenizeRequest struct {
	Number     string `json:"number" validate:"required,min=12,max=19"`
	ExpMonth   int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear    int    `json:"exp_year" validate:"required,min=2000"`
	CVC        string `json:"cvc" validate:"required,min=3,max=4"`
	HolderName string `json:"holder_name,omitempty"`
}

// --- Response DTOs ---

// AccessStatusResponse answers an entitlement check.
type AccessStatusResponse struct {
	HasAccess       bool   `json:"has_access"`
	FreeAcquisition bool   `json:"free_acquisition"`
	Verb            string `json:"verb"`
}

// GrantResponse represents an access grant in API responses.
type GrantResponse struct {
	UserID      string    `json:"user_id"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	Source      string    `json:"source"`
	GrantedAt   time.Time `json:"granted_at"`
}

// SessionResponse represents a checkout session in API responses.
type SessionResponse struct {
	ID            string            `json:"id"`
	ContentType   string            `json:"content_type"`
	ContentID     string            `json:"content_id"`
	Title         string            `json:"title,omitempty"`
	Price         float64           `json:"price"`
	Currency      string            `json:"currency,omitempty"`
	Status        string            `json:"status"`
	MethodKind    string            `json:"method_kind,omitempty"`
	Gateway       string            `json:"gateway,omitempty"`
	MethodDisplay map[string]string `json:"method_display,omitempty"`
	LastError     *string           `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// TransactionResponse represents a payment transaction in API responses.
type TransactionResponse struct {
	ID               string     `json:"id"`
	InvoiceID        string     `json:"invoice_id"`
	SessionID        string     `json:"session_id"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	Gateway          string     `json:"gateway"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	Status           string     `json:"status"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CheckoutResponse bundles a session with the grant issued on the spot for
// free content.
type CheckoutResponse struct {
	Session *SessionResponse `json:"session"`
	Grant   *GrantResponse   `json:"grant,omitempty"`
}

// PaymentResponse is the outcome of a charge attempt or a reconciliation.
type PaymentResponse struct {
	Session     *SessionResponse     `json:"session,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
	Grant       *GrantResponse       `json:"grant,omitempty"`
	Settled     bool                 `json:"settled"`
}

// PaymentConfigResponse is the client bootstrap payload.
type PaymentConfigResponse struct {
	PublishableKey string   `json:"publishable_key"`
	Gateways       []string `json:"gateways"`
}

// TokenResponse carries an opaque payment method token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromSession converts a domain session to API response.
func FromSession(s *checkout.Session) *SessionResponse {
	return &SessionResponse{
		ID:            s.ID.String(),
		ContentType:   string(s.Content.Type),
		ContentID:     s.Content.ID,
		Title:         s.Content.Title,
		Price:         centsToFloat(s.Content.PriceCents),
		Currency:      s.Content.Currency,
		Status:        string(s.Status),
		MethodKind:    string(s.MethodKind),
		Gateway:       string(s.Gateway),
		MethodDisplay: s.MethodDisplay,
		LastError:     s.LastError,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		CompletedAt:   s.CompletedAt,
	}
}

// FromTransaction converts a domain transaction to API response.
func FromTransaction(t *transaction.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID.String(),
		InvoiceID:        t.InvoiceID,
		SessionID:        t.SessionID.String(),
		Amount:           centsToFloat(t.AmountCents),
		Currency:         t.Currency,
		Gateway:          string(t.Gateway),
		GatewayReference: t.GatewayReference,
		Status:           string(t.Status),
		FailureReason:    t.FailureReason,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// FromGrant converts a domain access grant to API response.
func FromGrant(g *grant.AccessGrant) *GrantResponse {
	if g == nil {
		return nil
	}
	return &GrantResponse{
		UserID:      g.UserID,
		ContentType: string(g.ContentType),
		ContentID:   g.ContentID,
		Source:      string(g.Source),
		GrantedAt:   g.GrantedAt,
	}
}

// FromPaymentOutcome converts a charge attempt outcome to API response.
func FromPaymentOutcome(resp *appCheckout.ProcessPaymentResponse) *PaymentResponse {
	out := &PaymentResponse{
		Grant:   FromGrant(resp.Grant),
		Settled: resp.Grant != nil,
	}
	if resp.Session != nil {
		out.Session = FromSession(resp.Session)
	}
	if resp.Transaction != nil {
		out.Transaction = FromTransaction(resp.Transaction)
	}
	return out
}

// FromReconcileResult converts a reconciliation result to API response.
func FromReconcileResult(res *reconcile.Result) *PaymentResponse {
	out := &PaymentResponse{
		Grant:   FromGrant(res.Grant),
		Settled: res.Settled,
	}
	if res.Session != nil {
		out.Session = FromSession(res.Session)
	}
	if res.Transaction != nil {
		out.Transaction = FromTransaction(res.Transaction)
	}
	return out
}
