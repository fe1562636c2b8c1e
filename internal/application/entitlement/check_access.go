package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
)

// CheckAccessRequest holds the input for an entitlement check.
type CheckAccessRequest struct {
	// UserID is empty for anonymous visitors.
	UserID string
	Ref    content.Reference
}

// CheckAccessResponse holds the result of an entitlement check.
type CheckAccessResponse struct {
	HasAccess bool
	// FreeAcquisition signals that the content is free and a grant should be
	// requested directly instead of opening a checkout session.
	FreeAcquisition bool
	// Verb is the call-to-action matching the content type and price.
	Verb string
}

// CheckAccessUseCase answers whether a user already owns a content item.
type CheckAccessUseCase struct {
	grants grant.Store
}

// NewCheckAccessUseCase creates a new CheckAccessUseCase.
func NewCheckAccessUseCase(grants grant.Store) *CheckAccessUseCase {
	return &CheckAccessUseCase{grants: grants}
}

// Execute checks entitlement for the given user and content reference.
// Anonymous users never have access. A not-found-class lookup failure is
// downgraded to "no access, fall through to checkout": the user is never
// blocked on an infrastructure gap.
func (uc *CheckAccessUseCase) Execute(ctx context.Context, req CheckAccessRequest) (*CheckAccessResponse, error) {
	if err := req.Ref.Validate(); err != nil {
		return nil, err
	}

	resp := &CheckAccessResponse{
		Verb: req.Ref.Type.Verb(req.Ref.IsFree()),
	}

	if req.UserID == "" {
		return resp, nil
	}

	has, err := uc.grants.HasGrant(ctx, req.UserID, req.Ref.Type, req.Ref.ID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrAccessStatusUnknown) {
			has = false
		} else {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrEntitlementCheckFailed, err)
		}
	}

	resp.HasAccess = has
	resp.FreeAcquisition = !has && req.Ref.IsFree()
	return resp, nil
}
