package checkout

import (
	"context"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/domain/transaction"
)

// Invoice is the renderable view of a settled charge.
type Invoice struct {
	Transaction *transaction.Transaction
	Session     *domainCheckout.Session
}

// GetInvoiceUseCase fetches a settled transaction for invoice rendering.
type GetInvoiceUseCase struct {
	sessions     domainCheckout.Repository
	transactions transaction.Repository
}

// NewGetInvoiceUseCase creates a new GetInvoiceUseCase.
func NewGetInvoiceUseCase(sessions domainCheckout.Repository, transactions transaction.Repository) *GetInvoiceUseCase {
	return &GetInvoiceUseCase{sessions: sessions, transactions: transactions}
}

// Execute returns the invoice data. Only the session owner may read it, and
// only settled charges have invoices.
func (uc *GetInvoiceUseCase) Execute(ctx context.Context, userID, invoiceID string) (*Invoice, error) {
	tx, err := uc.transactions.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	session, err := uc.sessions.GetByID(ctx, tx.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}
	if tx.Status != transaction.StatusSucceeded {
		return nil, domainErrors.ErrTransactionNotFound
	}
	return &Invoice{Transaction: tx, Session: session}, nil
}

// ResendConfirmationUseCase re-emits the settlement events for a succeeded
// transaction, for users who lost the original confirmation email.
type ResendConfirmationUseCase struct {
	sessions     domainCheckout.Repository
	transactions transaction.Repository
	outboxRepo   outbox.Repository
}

// NewResendConfirmationUseCase creates a new ResendConfirmationUseCase.
func NewResendConfirmationUseCase(
	sessions domainCheckout.Repository,
	transactions transaction.Repository,
	outboxRepo outbox.Repository,
) *ResendConfirmationUseCase {
	return &ResendConfirmationUseCase{
		sessions:     sessions,
		transactions: transactions,
		outboxRepo:   outboxRepo,
	}
}

// Execute requeues the settled event for the transaction, or inserts a fresh
// one if the original entry is gone.
func (uc *ResendConfirmationUseCase) Execute(ctx context.Context, userID, invoiceID string) error {
	tx, err := uc.transactions.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return err
	}
	session, err := uc.sessions.GetByID(ctx, tx.SessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return domainErrors.ErrForbidden
	}
	if tx.Status != transaction.StatusSucceeded {
		return domainErrors.ErrTransactionNotFound
	}

	entries, err := uc.outboxRepo.GetByAggregate(ctx, "transaction", tx.ID.String())
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.EventType == outbox.EventPaymentSettled {
			return uc.outboxRepo.Requeue(ctx, entry.ID)
		}
	}

	return uc.outboxRepo.Insert(ctx, outbox.NewEntry(
		"transaction", tx.ID.String(), outbox.EventPaymentSettled,
		paymentPayload(session, tx),
	))
}
