package checkout

import (
	"context"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/google/uuid"
)

// GetSessionUseCase reads a single checkout session with an ownership check.
type GetSessionUseCase struct {
	sessions domainCheckout.Repository
}

// NewGetSessionUseCase creates a new GetSessionUseCase.
func NewGetSessionUseCase(sessions domainCheckout.Repository) *GetSessionUseCase {
	return &GetSessionUseCase{sessions: sessions}
}

// Execute returns the session if it belongs to the user.
func (uc *GetSessionUseCase) Execute(ctx context.Context, userID string, sessionID uuid.UUID) (*domainCheckout.Session, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}
	return session, nil
}

// ListSessionsRequest holds listing filters for the account screen.
type ListSessionsRequest struct {
	UserID string
	Status *domainCheckout.Status
	Limit  int
	Offset int
}

// ListSessionsUseCase lists a user's checkout sessions.
type ListSessionsUseCase struct {
	sessions domainCheckout.Repository
}

// NewListSessionsUseCase creates a new ListSessionsUseCase.
func NewListSessionsUseCase(sessions domainCheckout.Repository) *ListSessionsUseCase {
	return &ListSessionsUseCase{sessions: sessions}
}

// Execute lists sessions for the user, newest first.
func (uc *ListSessionsUseCase) Execute(ctx context.Context, req ListSessionsRequest) ([]*domainCheckout.Session, error) {
	if req.UserID == "" {
		return nil, domainErrors.ErrUnauthorized
	}
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return uc.sessions.ListByUser(ctx, req.UserID, req.Status, limit, req.Offset)
}
