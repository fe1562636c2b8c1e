package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/domain/transaction"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/aulaviva/checkout/pkg/retry"
	"github.com/google/uuid"
)

// Result is the reconciled view of one charge.
type Result struct {
	Session     *domainCheckout.Session
	Transaction *transaction.Transaction
	Grant       *grant.AccessGrant
	// Settled reports whether this call observed the first settlement.
	Settled bool
}

// Reconciler is the single entry point for payment confirmation. Every
// confirmation path (return redirect, client poll, background sweep) resolves
// an identifier to a gateway reference, verifies against the gateway, and on
// the first succeeded observation settles transaction + grant atomically.
type Reconciler struct {
	sessions     domainCheckout.Repository
	transactions transaction.Repository
	grants       grant.Store
	gateways     GatewayProvider
	outboxRepo   OutboxWriter
	txManager    TransactionManager
	locker       Locker
	verifyRetry  retry.Config
}

// New creates a Reconciler.
func New(
	sessions domainCheckout.Repository,
	transactions transaction.Repository,
	grants grant.Store,
	gateways GatewayProvider,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
	locker Locker,
) *Reconciler {
	return &Reconciler{
		sessions:     sessions,
		transactions: transactions,
		grants:       grants,
		gateways:     gateways,
		outboxRepo:   outboxRepo,
		txManager:    txManager,
		locker:       locker,
		verifyRetry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

// BySession reconciles through a checkout session id.
func (r *Reconciler) BySession(ctx context.Context, userID string, sessionID uuid.UUID) (*Result, error) {
	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && session.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}

	tx, err := r.transactions.LatestForSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			// nothing was ever charged; report the session as-is
			return &Result{Session: session}, nil
		}
		return nil, err
	}
	return r.reconcile(ctx, session, tx)
}

// ByGatewayReference reconciles through a provider-side identifier (payment
// intent id). When no local transaction exists for the reference, the record
// is materialized from the gateway's answer: the session id travels as
// merchant metadata on the remote charge.
func (r *Reconciler) ByGatewayReference(ctx context.Context, userID, reference string) (*Result, error) {
	tx, err := r.transactions.GetByGatewayReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			return r.materialize(ctx, userID, reference)
		}
		return nil, err
	}

	session, err := r.sessions.GetByID(ctx, tx.SessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && session.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}
	return r.reconcile(ctx, session, tx)
}

// LatestPending reconciles the user's most recent pending transaction,
// optionally scoped to one content item. contentType == "" means any.
func (r *Reconciler) LatestPending(ctx context.Context, userID string, contentType content.Type, contentID string) (*Result, error) {
	if userID == "" {
		return nil, domainErrors.ErrUnauthorized
	}
	tx, err := r.transactions.LatestPending(ctx, userID, contentType, contentID)
	if err != nil {
		return nil, err
	}
	session, err := r.sessions.GetByID(ctx, tx.SessionID)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, session, tx)
}

// reconcile drives one transaction to its current gateway truth. Concurrent
// confirmations of the same charge serialize on the reference lock; the loser
// re-reads and observes the winner's settlement.
func (r *Reconciler) reconcile(ctx context.Context, session *domainCheckout.Session, tx *transaction.Transaction) (*Result, error) {
	if tx.GatewayReference == "" {
		// charge never reached the gateway; nothing to verify
		return &Result{Session: session, Transaction: tx}, nil
	}

	var result *Result
	err := r.locker.WithLock(ctx, "reconcile:"+tx.GatewayReference, func(ctx context.Context) error {
		fresh, err := r.transactions.GetByID(ctx, tx.ID)
		if err != nil {
			return err
		}
		tx = fresh

		if tx.Status == transaction.StatusSucceeded {
			g, err := r.grants.GrantIfAbsent(ctx, session.UserID, session.Content.Type, session.Content.ID, grant.SourcePaid)
			if err != nil {
				return err
			}
			result = &Result{Session: session, Transaction: tx, Grant: g}
			return nil
		}

		verified, err := r.verify(ctx, session.Gateway, tx.GatewayReference)
		if err != nil {
			return err
		}

		result, err = r.apply(ctx, session, tx, verified)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// verify reads the charge state from the gateway, retrying transient
// failures with backoff. A persistently unavailable gateway surfaces as
// ErrReconciliationFailed and leaves all local state untouched.
func (r *Reconciler) verify(ctx context.Context, name domainCheckout.GatewayName, reference string) (*gateway.VerifyResult, error) {
	gw, _, err := r.gateways.Get(name)
	if err != nil {
		return nil, err
	}

	verified, err := retry.DoWithResult(ctx, r.verifyRetry, func() (*gateway.VerifyResult, error) {
		return gw.Verify(ctx, reference)
	}, func(err error) bool {
		return errors.Is(err, domainErrors.ErrGatewayUnavailable)
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrGatewayUnavailable) {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrReconciliationFailed, err)
		}
		return nil, err
	}
	return verified, nil
}

// apply persists the verified outcome. A session already expired by the sweep
// does not block settlement: the gateway's succeeded answer wins and the
// grant is still issued.
func (r *Reconciler) apply(ctx context.Context, session *domainCheckout.Session, tx *transaction.Transaction, verified *gateway.VerifyResult) (*Result, error) {
	switch verified.Status {
	case gateway.StatusSucceeded:
		var granted *grant.AccessGrant
		err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			tx.MarkSucceeded()
			if err := r.transactions.Update(txCtx, tx); err != nil {
				return err
			}

			if !session.IsTerminal() {
				if session.Status == domainCheckout.StatusAwaitingExternal ||
					session.Status == domainCheckout.StatusProcessing {
					if err := session.MarkSucceeded(); err != nil {
						return err
					}
				}
				if session.Status == domainCheckout.StatusSucceeded {
					if err := session.MarkGrantRequested(); err != nil {
						return err
					}
				}
			}

			g, err := r.grants.GrantIfAbsent(txCtx, session.UserID, session.Content.Type, session.Content.ID, grant.SourcePaid)
			if err != nil {
				return err
			}
			granted = g

			if session.Status == domainCheckout.StatusGrantRequested {
				if err := session.MarkCompleted(); err != nil {
					return err
				}
			}
			if err := r.sessions.Update(txCtx, session); err != nil {
				return err
			}

			if err := r.outboxRepo.Insert(txCtx, outbox.NewEntry(
				"transaction", tx.ID.String(), outbox.EventPaymentSettled,
				settlementPayload(session, tx),
			)); err != nil {
				return err
			}
			return r.outboxRepo.Insert(txCtx, outbox.NewEntry(
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
		return &Result{Session: session, Transaction: tx, Grant: granted, Settled: true}, nil

	case gateway.StatusFailed:
		err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			reason := verified.DeclineReason
			if reason == "" {
				reason = "declined"
			}
			tx.MarkFailed(reason)
			if err := r.transactions.Update(txCtx, tx); err != nil {
				return err
			}
			if session.CanTransitionTo(domainCheckout.StatusFailed) {
				if err := session.MarkFailed(reason); err != nil {
					return err
				}
				if err := r.sessions.Update(txCtx, session); err != nil {
					return err
				}
			}
			return r.outboxRepo.Insert(txCtx, outbox.NewEntry(
				"transaction", tx.ID.String(), outbox.EventPaymentFailed,
				settlementPayload(session, tx),
			))
		})
		if err != nil {
			return nil, err
		}
		return &Result{Session: session, Transaction: tx}, nil

	default:
		// still pending at the gateway; no local change
		return &Result{Session: session, Transaction: tx}, nil
	}
}

// materialize rebuilds a missing local transaction from the gateway's view of
// a charge. Only possible when the remote charge carries our session id.
func (r *Reconciler) materialize(ctx context.Context, userID, reference string) (*Result, error) {
	// payment intent style references only exist on the card gateway
	verified, err := r.verify(ctx, domainCheckout.GatewayStripe, reference)
	if err != nil {
		return nil, err
	}
	if verified.SessionID == "" {
		return nil, domainErrors.ErrTransactionNotFound
	}

	sessionID, err := uuid.Parse(verified.SessionID)
	if err != nil {
		return nil, domainErrors.ErrTransactionNotFound
	}
	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && session.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}

	tx, err := transaction.New(session.ID, verified.AmountCents, verified.Currency, session.Gateway)
	if err != nil {
		return nil, err
	}
	tx.GatewayReference = reference
	if err := r.transactions.Create(ctx, tx); err != nil {
		// a concurrent confirmation may have materialized it first
		if errors.Is(err, domainErrors.ErrDuplicateReference) {
			return r.ByGatewayReference(ctx, userID, reference)
		}
		return nil, err
	}

	return r.apply(ctx, session, tx, verified)
}

func settlementPayload(session *domainCheckout.Session, tx *transaction.Transaction) map[string]any {
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
