package checkout

import (
	"context"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/google/uuid"
)

// SelectMethodRequest holds the chosen payment method for a session.
type SelectMethodRequest struct {
	UserID    string
	SessionID uuid.UUID
	Kind      domainCheckout.MethodKind
	// Display carries non-sensitive fragments for receipts and the account
	// screen (brand/last4, provider/phone suffix, bank/account suffix).
	Display map[string]string
}

// SelectMethodUseCase records the payment method and resolves the gateway.
type SelectMethodUseCase struct {
	sessions domainCheckout.Repository
}

// NewSelectMethodUseCase creates a new SelectMethodUseCase.
func NewSelectMethodUseCase(sessions domainCheckout.Repository) *SelectMethodUseCase {
	return &SelectMethodUseCase{sessions: sessions}
}

// Execute selects the method. Selecting from the failed state is the explicit
// retry path; each later charge attempt gets its own transaction record.
func (uc *SelectMethodUseCase) Execute(ctx context.Context, req SelectMethodRequest) (*domainCheckout.Session, error) {
	session, err := uc.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != req.UserID {
		return nil, domainErrors.ErrForbidden
	}

	if err := session.SelectMethod(req.Kind, req.Display); err != nil {
		return nil, err
	}
	if err := uc.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
