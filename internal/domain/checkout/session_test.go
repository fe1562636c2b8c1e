package checkout

import (
	"errors"
	"testing"

	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
)

func paidRef() content.Reference {
	return content.Reference{
		Type: content.TypeCourse, ID: "c-1", PriceCents: 50000, Currency: "MZN", Title: "Curso",
	}
}

func TestNewSession(t *testing.T) {
	s, err := NewSession("user-1", paidRef())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusCreated {
		t.Errorf("expected created, got %s", s.Status)
	}

	if _, err := NewSession("", paidRef()); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestGatewayFor(t *testing.T) {
	cases := []struct {
		kind MethodKind
		want GatewayName
	}{
		{MethodCard, GatewayStripe},
		{MethodMobileMoney, GatewayPaytek},
		{MethodBankTransfer, GatewayPaytek},
	}
	for _, c := range cases {
		got, err := GatewayFor(c.kind)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.kind, err)
		}
		if got != c.want {
			t.Errorf("%s: expected %s, got %s", c.kind, c.want, got)
		}
	}

	if _, err := GatewayFor(MethodKind("crypto")); !errors.Is(err, domainErrors.ErrInvalidPaymentMethod) {
		t.Errorf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestSession_CardHappyPath(t *testing.T) {
	s, _ := NewSession("user-1", paidRef())

	if err := s.SelectMethod(MethodCard, map[string]string{"brand": "visa", "last4": "4242"}); err != nil {
		t.Fatalf("select method: %v", err)
	}
	if s.Gateway != GatewayStripe {
		t.Errorf("expected stripe gateway, got %s", s.Gateway)
	}
	if err := s.MarkProcessing(); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if err := s.MarkSucceeded(); err != nil {
		t.Fatalf("succeeded: %v", err)
	}
	if err := s.MarkGrantRequested(); err != nil {
		t.Fatalf("grant requested: %v", err)
	}
	if err := s.MarkCompleted(); err != nil {
		t.Fatalf("completed: %v", err)
	}
	if !s.IsTerminal() {
		t.Error("completed session should be terminal")
	}
	if s.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestSession_FreePathSkipsGateway(t *testing.T) {
	ref := paidRef()
	ref.PriceCents = 0
	s, _ := NewSession("user-1", ref)

	if err := s.MarkGrantRequested(); err != nil {
		t.Fatalf("free content must transition created -> grant_requested: %v", err)
	}
	if err := s.MarkCompleted(); err != nil {
		t.Fatalf("completed: %v", err)
	}
}

func TestSession_AsyncConfirmation(t *testing.T) {
	s, _ := NewSession("user-1", paidRef())
	s.SelectMethod(MethodBankTransfer, nil)
	s.MarkProcessing()

	if err := s.MarkAwaitingExternal(); err != nil {
		t.Fatalf("awaiting: %v", err)
	}
	if err := s.MarkSucceeded(); err != nil {
		t.Fatalf("late settlement: %v", err)
	}
}

func TestSession_FailedRetry(t *testing.T) {
	s, _ := NewSession("user-1", paidRef())
	s.SelectMethod(MethodCard, nil)
	s.MarkProcessing()

	if err := s.MarkFailed("card declined"); err != nil {
		t.Fatalf("failed: %v", err)
	}
	if s.LastError == nil || *s.LastError != "card declined" {
		t.Error("expected decline reason recorded")
	}

	// Retry with a different method.
	if err := s.SelectMethod(MethodMobileMoney, nil); err != nil {
		t.Fatalf("retry select: %v", err)
	}
	if s.LastError != nil {
		t.Error("retry should clear last error")
	}
	if s.Gateway != GatewayPaytek {
		t.Errorf("expected paytek after retry, got %s", s.Gateway)
	}
}

func TestSession_FailBeforeProcessing(t *testing.T) {
	s, _ := NewSession("user-1", paidRef())
	s.SelectMethod(MethodCard, nil)

	// A pre-charge rejection, e.g. a stale price, fails the session directly
	// from method_selected.
	if err := s.MarkFailed("submitted 9900 BRL, current price is 14900 BRL"); err != nil {
		t.Fatalf("failed: %v", err)
	}
	if s.Status != StatusFailed {
		t.Errorf("expected failed, got %s", s.Status)
	}
	if err := s.SelectMethod(MethodCard, nil); err != nil {
		t.Fatalf("retry select: %v", err)
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	s, _ := NewSession("user-1", paidRef())

	if err := s.MarkProcessing(); !errors.Is(err, domainErrors.ErrMethodNotSelected) {
		t.Errorf("processing without method: expected ErrMethodNotSelected, got %v", err)
	}
	if err := s.MarkSucceeded(); !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Errorf("created -> succeeded: expected ErrInvalidStateTransition, got %v", err)
	}

	s.SelectMethod(MethodCard, nil)
	s.MarkProcessing()
	s.MarkSucceeded()
	s.MarkGrantRequested()
	s.MarkCompleted()

	if err := s.TransitionTo(StatusMethodSelected); err == nil {
		t.Error("terminal states must be immutable")
	}
}

func TestSession_AwaitingExpires(t *testing.T) {
	s, _ := NewSession("user-1", paidRef())
	s.SelectMethod(MethodBankTransfer, nil)
	s.MarkProcessing()
	s.MarkAwaitingExternal()

	if err := s.MarkExpired(); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !s.IsTerminal() {
		t.Error("expired session should be terminal")
	}
}
