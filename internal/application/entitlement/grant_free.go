package entitlement

import (
	"context"
	"time"

	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/pkg/retry"
)

// GrantFreeRequest holds the input for a free acquisition.
type GrantFreeRequest struct {
	UserID string
	Ref    content.Reference
	Source grant.Source
}

// GrantFreeUseCase grants access to free content.
type GrantFreeUseCase struct {
	grants     grant.Store
	outboxRepo OutboxWriter
	txManager  TransactionManager
	retryCfg   retry.Config
}

// NewGrantFreeUseCase creates a new GrantFreeUseCase.
func NewGrantFreeUseCase(
	grants grant.Store,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
) *GrantFreeUseCase {
	return &GrantFreeUseCase{
		grants:     grants,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		retryCfg: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	}
}

// Execute grants free access. The grant write is retried transparently since
// no money is at stake; grant-if-absent makes the retries harmless.
func (uc *GrantFreeUseCase) Execute(ctx context.Context, req GrantFreeRequest) (*grant.AccessGrant, error) {
	if req.UserID == "" {
		return nil, domainErrors.ErrUnauthorized
	}
	if err := req.Ref.Validate(); err != nil {
		return nil, err
	}
	if !req.Ref.IsFree() {
		return nil, domainErrors.ErrContentNotFree
	}

	source := req.Source
	if source == "" {
		source = grant.SourceFree
	}

	var granted *grant.AccessGrant
	err := retry.Do(ctx, uc.retryCfg, func() error {
		return uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			g, err := uc.grants.GrantIfAbsent(txCtx, req.UserID, req.Ref.Type, req.Ref.ID, source)
			if err != nil {
				return err
			}
			granted = g

			return uc.outboxRepo.Insert(txCtx, outbox.NewEntry(
				"entitlement",
				req.UserID+":"+string(req.Ref.Type)+":"+req.Ref.ID,
				outbox.EventEntitlementGranted,
				map[string]any{
					"user_id":      req.UserID,
					"content_type": string(req.Ref.Type),
					"content_id":   req.Ref.ID,
					"source":       string(source),
				},
			))
		})
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}
