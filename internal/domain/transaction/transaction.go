package transaction

import (
	"fmt"
	"time"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/google/uuid"
)

// Status is the canonical payment record status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Transaction is the canonical payment record for one checkout attempt.
// A session may own several transactions only through explicit retries after
// failure; a succeeded transaction maps to exactly one access grant.
type Transaction struct {
	ID               uuid.UUID
	InvoiceID        string
	SessionID        uuid.UUID
	AmountCents      int64
	Currency         string
	Gateway          checkout.GatewayName
	// GatewayReference is the provider-side identifier (checkout session id
	// or payment intent id). All confirmation paths resolve through it.
	GatewayReference string
	Status           Status
	FailureReason    *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New creates a pending transaction for a charge attempt.
func New(sessionID uuid.UUID, amountCents int64, currency string, gw checkout.GatewayName) (*Transaction, error) {
	if amountCents <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if len(currency) != 3 {
		return nil, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}

	id := uuid.New()
	now := time.Now()
	return &Transaction{
		ID:          id,
		InvoiceID:   mintInvoiceID(id, now),
		SessionID:   sessionID,
		AmountCents: amountCents,
		Currency:    currency,
		Gateway:     gw,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MarkSucceeded records gateway confirmation. Succeeding an already succeeded
// transaction is a no-op so duplicate confirmations converge.
func (t *Transaction) MarkSucceeded() {
	if t.Status == StatusSucceeded {
		return
	}
	t.Status = StatusSucceeded
	t.FailureReason = nil
	t.UpdatedAt = time.Now()
}

// MarkFailed records a terminal failure for this attempt.
func (t *Transaction) MarkFailed(reason string) {
	t.Status = StatusFailed
	t.FailureReason = &reason
	t.UpdatedAt = time.Now()
}

// IsTerminal checks if the transaction reached a final status.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

// mintInvoiceID derives a human-readable invoice number from the transaction
// identity. Stable for the life of the transaction.
func mintInvoiceID(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("INV-%s-%s", at.Format("20060102"), id.String()[:8])
}
