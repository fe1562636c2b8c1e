package checkout

import (
	"context"
	"errors"
	"testing"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/testutil"
)

func startPaidSession(t *testing.T, sessions *testutil.MockSessionRepository) *domainCheckout.Session {
	t.Helper()
	session, err := domainCheckout.NewSession("user-1", paidCourse())
	if err != nil {
		t.Fatalf("building session: %v", err)
	}
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("storing session: %v", err)
	}
	return session
}

func TestSelectMethod_CardResolvesStripe(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	session := startPaidSession(t, sessions)
	uc := NewSelectMethodUseCase(sessions)

	updated, err := uc.Execute(context.Background(), SelectMethodRequest{
		UserID:    "user-1",
		SessionID: session.ID,
		Kind:      domainCheckout.MethodCard,
		Display:   map[string]string{"brand": "visa", "last4": "4242"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Gateway != domainCheckout.GatewayStripe {
		t.Errorf("expected stripe, got %s", updated.Gateway)
	}
	if updated.Status != domainCheckout.StatusMethodSelected {
		t.Errorf("expected method_selected, got %s", updated.Status)
	}
	if updated.MethodDisplay["last4"] != "4242" {
		t.Errorf("display fragments lost: %v", updated.MethodDisplay)
	}
}

func TestSelectMethod_MobileMoneyResolvesPaytek(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	session := startPaidSession(t, sessions)
	uc := NewSelectMethodUseCase(sessions)

	updated, err := uc.Execute(context.Background(), SelectMethodRequest{
		UserID:    "user-1",
		SessionID: session.ID,
		Kind:      domainCheckout.MethodMobileMoney,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Gateway != domainCheckout.GatewayPaytek {
		t.Errorf("expected paytek, got %s", updated.Gateway)
	}
}

func TestSelectMethod_UnknownKindRejected(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	session := startPaidSession(t, sessions)
	uc := NewSelectMethodUseCase(sessions)

	_, err := uc.Execute(context.Background(), SelectMethodRequest{
		UserID:    "user-1",
		SessionID: session.ID,
		Kind:      "crypto",
	})
	if !errors.Is(err, domainErrors.ErrInvalidPaymentMethod) {
		t.Errorf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestSelectMethod_OtherUsersSessionForbidden(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	session := startPaidSession(t, sessions)
	uc := NewSelectMethodUseCase(sessions)

	_, err := uc.Execute(context.Background(), SelectMethodRequest{
		UserID:    "user-2",
		SessionID: session.ID,
		Kind:      domainCheckout.MethodCard,
	})
	if !errors.Is(err, domainErrors.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestSelectMethod_RetryAfterFailure(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	session := startPaidSession(t, sessions)
	if err := session.SelectMethod(domainCheckout.MethodCard, nil); err != nil {
		t.Fatal(err)
	}
	if err := session.MarkProcessing(); err != nil {
		t.Fatal(err)
	}
	if err := session.MarkFailed("card declined"); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Update(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	uc := NewSelectMethodUseCase(sessions)
	updated, err := uc.Execute(context.Background(), SelectMethodRequest{
		UserID:    "user-1",
		SessionID: session.ID,
		Kind:      domainCheckout.MethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("retry via method selection should work: %v", err)
	}
	if updated.Status != domainCheckout.StatusMethodSelected {
		t.Errorf("expected method_selected, got %s", updated.Status)
	}
	if updated.LastError != nil {
		t.Error("expected last error cleared on retry")
	}
}
