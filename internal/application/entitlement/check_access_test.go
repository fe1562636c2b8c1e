package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/testutil"
)

func paidCourse() content.Reference {
	return content.Reference{
		Type:       content.TypeCourse,
		ID:         "course-42",
		PriceCents: 14900,
		Currency:   "BRL",
		Title:      "Go do zero",
	}
}

func freeLesson() content.Reference {
	return content.Reference{
		Type:  content.TypeLesson,
		ID:    "lesson-7",
		Title: "Introducao",
	}
}

func TestCheckAccess_AnonymousNeverHasAccess(t *testing.T) {
	grants := testutil.NewMockGrantStore()
	uc := NewCheckAccessUseCase(grants)

	resp, err := uc.Execute(context.Background(), CheckAccessRequest{UserID: "", Ref: paidCourse()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.HasAccess {
		t.Error("anonymous user should not have access")
	}
	if resp.FreeAcquisition {
		t.Error("anonymous user should not get a free-acquisition signal")
	}
	if resp.Verb != "Comprar" {
		t.Errorf("expected verb Comprar, got %q", resp.Verb)
	}
}

func TestCheckAccess_GrantedUserHasAccess(t *testing.T) {
	grants := testutil.NewMockGrantStore()
	ref := paidCourse()
	if _, err := grants.GrantIfAbsent(context.Background(), "user-1", ref.Type, ref.ID, grant.SourcePaid); err != nil {
		t.Fatalf("seeding grant: %v", err)
	}

	uc := NewCheckAccessUseCase(grants)
	resp, err := uc.Execute(context.Background(), CheckAccessRequest{UserID: "user-1", Ref: ref})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.HasAccess {
		t.Error("expected access for granted user")
	}
	if resp.FreeAcquisition {
		t.Error("granted user should not get a free-acquisition signal")
	}
}

func TestCheckAccess_FreeContentSignalsAcquisition(t *testing.T) {
	grants := testutil.NewMockGrantStore()
	uc := NewCheckAccessUseCase(grants)

	resp, err := uc.Execute(context.Background(), CheckAccessRequest{UserID: "user-1", Ref: freeLesson()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.HasAccess {
		t.Error("ungranted user should not have access")
	}
	if !resp.FreeAcquisition {
		t.Error("free content without a grant should signal acquisition")
	}
	if resp.Verb != "Acessar" {
		t.Errorf("expected verb Acessar, got %q", resp.Verb)
	}
}

func TestCheckAccess_NotFoundClassErrorFallsThrough(t *testing.T) {
	grants := testutil.NewMockGrantStore()
	grants.HasGrantFunc = func(ctx context.Context, userID string, contentType content.Type, contentID string) (bool, error) {
		return false, domainErrors.ErrAccessStatusUnknown
	}

	uc := NewCheckAccessUseCase(grants)
	resp, err := uc.Execute(context.Background(), CheckAccessRequest{UserID: "user-1", Ref: paidCourse()})
	if err != nil {
		t.Fatalf("expected fall-through, got error: %v", err)
	}
	if resp.HasAccess {
		t.Error("unknown status should read as no access")
	}
}

func TestCheckAccess_NetworkErrorSurfaces(t *testing.T) {
	grants := testutil.NewMockGrantStore()
	grants.HasGrantFunc = func(ctx context.Context, userID string, contentType content.Type, contentID string) (bool, error) {
		return false, errors.New("connection refused")
	}

	uc := NewCheckAccessUseCase(grants)
	_, err := uc.Execute(context.Background(), CheckAccessRequest{UserID: "user-1", Ref: paidCourse()})
	if !errors.Is(err, domainErrors.ErrEntitlementCheckFailed) {
		t.Errorf("expected ErrEntitlementCheckFailed, got %v", err)
	}
}

func TestCheckAccess_InvalidReferenceRejected(t *testing.T) {
	uc := NewCheckAccessUseCase(testutil.NewMockGrantStore())
	_, err := uc.Execute(context.Background(), CheckAccessRequest{
		UserID: "user-1",
		Ref:    content.Reference{Type: "webinar", ID: "x"},
	})
	if !errors.Is(err, domainErrors.ErrUnsupportedContentType) {
		t.Errorf("expected ErrUnsupportedContentType, got %v", err)
	}
}
