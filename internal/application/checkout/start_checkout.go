package checkout

import (
	"context"
	"fmt"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/domain/outbox"
)

// StartCheckoutRequest holds the input for opening a checkout session.
type StartCheckoutRequest struct {
	UserID string
	Ref    content.Reference
}

// StartCheckoutResponse holds the created session and, for free content, the
// grant issued on the spot.
type StartCheckoutResponse struct {
	Session *domainCheckout.Session
	Grant   *grant.AccessGrant
}

// StartCheckoutUseCase opens a checkout session for a content item.
type StartCheckoutUseCase struct {
	sessions   domainCheckout.Repository
	grants     grant.Store
	outboxRepo OutboxWriter
	txManager  TransactionManager
}

// NewStartCheckoutUseCase creates a new StartCheckoutUseCase.
func NewStartCheckoutUseCase(
	sessions domainCheckout.Repository,
	grants grant.Store,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
) *StartCheckoutUseCase {
	return &StartCheckoutUseCase{
		sessions:   sessions,
		grants:     grants,
		outboxRepo: outboxRepo,
		txManager:  txManager,
	}
}

// Execute opens a session. Already-entitled users are turned away before a
// session exists. Free content never reaches a gateway: the session jumps
// straight to grant_requested and completes with the grant in one database
// transaction.
func (uc *StartCheckoutUseCase) Execute(ctx context.Context, req StartCheckoutRequest) (*StartCheckoutResponse, error) {
	if req.UserID == "" {
		return nil, domainErrors.ErrUnauthorized
	}
	if err := req.Ref.Validate(); err != nil {
		return nil, err
	}

	has, err := uc.grants.HasGrant(ctx, req.UserID, req.Ref.Type, req.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrEntitlementCheckFailed, err)
	}
	if has {
		return nil, domainErrors.ErrAlreadyEntitled
	}

	session, err := domainCheckout.NewSession(req.UserID, req.Ref)
	if err != nil {
		return nil, err
	}

	if !req.Ref.IsFree() {
		if err := uc.sessions.Create(ctx, session); err != nil {
			return nil, err
		}
		return &StartCheckoutResponse{Session: session}, nil
	}

	var granted *grant.AccessGrant
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := session.MarkGrantRequested(); err != nil {
			return err
		}
		if err := uc.sessions.Create(txCtx, session); err != nil {
			return err
		}

		g, err := uc.grants.GrantIfAbsent(txCtx, req.UserID, req.Ref.Type, req.Ref.ID, grant.SourceFree)
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

		return uc.outboxRepo.Insert(txCtx, outbox.NewEntry(
			"entitlement",
			req.UserID+":"+string(req.Ref.Type)+":"+req.Ref.ID,
			outbox.EventEntitlementGranted,
			map[string]any{
				"user_id":      req.UserID,
				"content_type": string(req.Ref.Type),
				"content_id":   req.Ref.ID,
				"source":       string(grant.SourceFree),
				"session_id":   session.ID.String(),
			},
		))
	})
	if err != nil {
		return nil, err
	}

	return &StartCheckoutResponse{Session: session, Grant: granted}, nil
}
