package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/domain/transaction"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/aulaviva/checkout/pkg/saga"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// ProcessPaymentRequest holds the input for a charge attempt.
type ProcessPaymentRequest struct {
	UserID    string
	SessionID uuid.UUID
	// AmountCents and Currency are re-submitted by the client and validated
	// against the server-held price. The displayed price is never trusted as
	// the charge amount.
	AmountCents int64
	Currency    string
	Method      gateway.MethodDetails
}

// ProcessPaymentResponse holds the outcome of a charge attempt.
type ProcessPaymentResponse struct {
	Session     *domainCheckout.Session
	Transaction *transaction.Transaction
	// Grant is set when the charge settled synchronously.
	Grant *grant.AccessGrant
}

// ProcessPaymentUseCase charges the selected method and settles the session.
type ProcessPaymentUseCase struct {
	sessions     domainCheckout.Repository
	transactions transaction.Repository
	grants       grant.Store
	gateways     GatewayProvider
	outboxRepo   OutboxWriter
	txManager    TransactionManager
}

// NewProcessPaymentUseCase creates a new ProcessPaymentUseCase.
func NewProcessPaymentUseCase(
	sessions domainCheckout.Repository,
	transactions transaction.Repository,
	grants grant.Store,
	gateways GatewayProvider,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
) *ProcessPaymentUseCase {
	return &ProcessPaymentUseCase{
		sessions:     sessions,
		transactions: transactions,
		grants:       grants,
		gateways:     gateways,
		outboxRepo:   outboxRepo,
		txManager:    txManager,
	}
}

// Execute runs one charge attempt. A stale price fails the session without
// ever reaching processing; the failed->method_selected edge keeps it
// retryable after the client refreshes. Synchronous success settles
// transaction, session and grant in one database transaction; asynchronous
// gateways park the session awaiting external confirmation for the
// reconciler.
func (uc *ProcessPaymentUseCase) Execute(ctx context.Context, req ProcessPaymentRequest) (*ProcessPaymentResponse, error) {
	session, err := uc.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != req.UserID {
		return nil, domainErrors.ErrForbidden
	}

	if req.AmountCents != session.Content.PriceCents ||
		!strings.EqualFold(req.Currency, session.Content.Currency) {
		mismatchErr := domainErrors.NewDomainError(
			"price_mismatch",
			fmt.Sprintf("submitted %d %s, current price is %d %s",
				req.AmountCents, req.Currency,
				session.Content.PriceCents, session.Content.Currency),
			domainErrors.ErrPriceMismatch,
		)
		if err := session.MarkFailed(mismatchErr.Message); err != nil {
			return nil, err
		}
		if err := uc.sessions.Update(ctx, session); err != nil {
			return nil, err
		}
		return nil, mismatchErr
	}

	if req.Method.Kind != "" && req.Method.Kind != session.MethodKind {
		return nil, domainErrors.ErrInvalidPaymentMethod
	}
	req.Method.Kind = session.MethodKind

	if err := session.MarkProcessing(); err != nil {
		return nil, err
	}
	if err := uc.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	gw, breaker, err := uc.gateways.Get(session.Gateway)
	if err != nil {
		return nil, err
	}

	tx, err := transaction.New(session.ID, session.Content.PriceCents, session.Content.Currency, session.Gateway)
	if err != nil {
		return nil, err
	}

	var result *gateway.ChargeResult
	chargeSaga := saga.New("process-payment").
		AddStep(saga.Step{
			Name: "record-attempt",
			Execute: func(ctx context.Context) error {
				return uc.transactions.Create(ctx, tx)
			},
			Compensate: func(ctx context.Context) error {
				tx.MarkFailed("charge not submitted")
				return uc.transactions.Update(ctx, tx)
			},
		}).
		AddStep(saga.Step{
			Name: "charge-gateway",
			Execute: func(ctx context.Context) error {
				r, err := breaker.Execute(func() (*gateway.ChargeResult, error) {
					return gw.Charge(ctx, gateway.ChargeRequest{
						SessionID:   session.ID.String(),
						AmountCents: tx.AmountCents,
						Currency:    tx.Currency,
						Method:      req.Method,
					})
				})
				if err != nil {
					if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
						return fmt.Errorf("%w: circuit open for %s", domainErrors.ErrGatewayUnavailable, session.Gateway)
					}
					return err
				}
				result = r
				return nil
			},
		})

	if _, err := chargeSaga.Execute(ctx); err != nil {
		return uc.failAttempt(ctx, session, tx, err)
	}

	tx.GatewayReference = result.GatewayReference

	switch result.Status {
	case gateway.StatusSucceeded:
		return uc.settle(ctx, session, tx)
	case gateway.StatusPending:
		return uc.await(ctx, session, tx)
	default:
		reason := result.DeclineReason
		if reason == "" {
			reason = "declined"
		}
		return uc.failAttempt(ctx, session, tx,
			fmt.Errorf("%w: %s", domainErrors.ErrGatewayRejected, reason))
	}
}

// settle finalizes a synchronous success: transaction, session transitions,
// grant-if-absent and outbox events inside one database transaction.
func (uc *ProcessPaymentUseCase) settle(ctx context.Context, session *domainCheckout.Session, tx *transaction.Transaction) (*ProcessPaymentResponse, error) {
	var granted *grant.AccessGrant
	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tx.MarkSucceeded()
		if err := uc.transactions.Update(txCtx, tx); err != nil {
			return err
		}

		if err := session.MarkSucceeded(); err != nil {
			return err
		}
		if err := session.MarkGrantRequested(); err != nil {
			return err
		}

		g, err := uc.grants.GrantIfAbsent(txCtx, session.UserID, session.Content.Type, session.Content.ID, grant.SourcePaid)
		if err != nil {
			return err
		}
		granted = g

		if err := session.MarkCompleted(); err != nil {
			return err
		}
		if err := uc.sessions.Update(txCtx, session); err != nil {
			return err
		}

		if err := uc.outboxRepo.Insert(txCtx, outbox.NewEntry(
			"transaction", tx.ID.String(), outbox.EventPaymentSettled,
			paymentPayload(session, tx),
		)); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, outbox.NewEntry(
			"entitlement",
			session.UserID+":"+string(session.Content.Type)+":"+session.Content.ID,
			outbox.EventEntitlementGranted,
			map[string]any{
				"user_id":      session.UserID,
				"content_type": string(session.Content.Type),
				"content_id":   session.Content.ID,
				"source":       string(grant.SourcePaid),
				"session_id":   session.ID.String(),
			},
		))
	})
	if err != nil {
		return nil, err
	}
	return &ProcessPaymentResponse{Session: session, Transaction: tx, Grant: granted}, nil
}

// await parks an asynchronous charge until external confirmation.
func (uc *ProcessPaymentUseCase) await(ctx context.Context, session *domainCheckout.Session, tx *transaction.Transaction) (*ProcessPaymentResponse, error) {
	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.transactions.Update(txCtx, tx); err != nil {
			return err
		}
		if err := session.MarkAwaitingExternal(); err != nil {
			return err
		}
		if err := uc.sessions.Update(txCtx, session); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, outbox.NewEntry(
			"transaction", tx.ID.String(), outbox.EventPaymentInitiated,
			paymentPayload(session, tx),
		))
	})
	if err != nil {
		return nil, err
	}
	return &ProcessPaymentResponse{Session: session, Transaction: tx}, nil
}

// failAttempt records the failure on the transaction and session, leaving the
// session retryable via method selection, and returns the original error.
func (uc *ProcessPaymentUseCase) failAttempt(ctx context.Context, session *domainCheckout.Session, tx *transaction.Transaction, cause error) (*ProcessPaymentResponse, error) {
	reason := failureReason(cause)

	txErr := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tx.MarkFailed(reason)
		if err := uc.transactions.Update(txCtx, tx); err != nil &&
			!errors.Is(err, domainErrors.ErrTransactionNotFound) {
			// the attempt may never have been recorded
			return err
		}
		if err := session.MarkFailed(reason); err != nil {
			return err
		}
		if err := uc.sessions.Update(txCtx, session); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, outbox.NewEntry(
			"transaction", tx.ID.String(), outbox.EventPaymentFailed,
			paymentPayload(session, tx),
		))
	})
	if txErr != nil {
		return nil, fmt.Errorf("recording failed attempt: %v (charge error: %w)", txErr, cause)
	}
	return nil, cause
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrGatewayUnavailable):
		return "gateway unavailable"
	case errors.Is(err, domainErrors.ErrGatewayAuth):
		return "gateway configuration error"
	default:
		var de *domainErrors.DomainError
		if errors.As(err, &de) {
			return de.Message
		}
		return err.Error()
	}
}

func paymentPayload(session *domainCheckout.Session, tx *transaction.Transaction) map[string]any {
	return map[string]any{
		"transaction_id":    tx.ID.String(),
		"invoice_id":        tx.InvoiceID,
		"session_id":        session.ID.String(),
		"user_id":           session.UserID,
		"content_type":      string(session.Content.Type),
		"content_id":        session.Content.ID,
		"amount_cents":      tx.AmountCents,
		"currency":          tx.Currency,
		"gateway":           string(tx.Gateway),
		"gateway_reference": tx.GatewayReference,
		"status":            string(tx.Status),
	}
}
