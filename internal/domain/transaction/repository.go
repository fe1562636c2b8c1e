package transaction

import (
	"context"

	"github.com/aulaviva/checkout/internal/domain/content"
	"github.com/google/uuid"
)

// Repository defines the interface for transaction persistence
type Repository interface {
	// Create creates a new transaction
	Create(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByInvoiceID retrieves a transaction by its invoice number
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Transaction, error)

	// GetByGatewayReference retrieves a transaction by its provider-side
	// identifier (checkout session id or payment intent id).
	GetByGatewayReference(ctx context.Context, reference string) (*Transaction, error)

	// LatestForSession retrieves the most recent transaction of a session.
	LatestForSession(ctx context.Context, sessionID uuid.UUID) (*Transaction, error)

	// LatestPending retrieves the most recent pending transaction for a user,
	// optionally scoped to one content item. contentType == "" means any.
	LatestPending(ctx context.Context, userID string, contentType content.Type, contentID string) (*Transaction, error)

	// Update updates an existing transaction
	Update(ctx context.Context, tx *Transaction) error

	// ListPending lists pending transactions, oldest first, for the
	// background reconciliation sweep.
	ListPending(ctx context.Context, limit int) ([]*Transaction, error)
}
