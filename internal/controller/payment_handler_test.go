package controller

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/google/uuid"
)

func TestProcess_OneShotCard(t *testing.T) {
	env := newHandlerEnv(t, "user-1")

	rec := env.do(t, http.MethodPost, "/payments/process", ProcessPaymentRequest{
		ContentType: "course",
		Content:     paidCourse(),
		MethodKind:  "card",
		PaymentData: PaymentDataRequest{Token: "pm_test"},
		Display:     map[string]string{"brand": "visa", "last4": "4242"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[PaymentResponse](t, rec)
	if !resp.Settled || resp.Grant == nil {
		t.Fatalf("expected settled one-shot payment, got %s", rec.Body.String())
	}
	if resp.Transaction.Amount != 49.90 || resp.Transaction.Currency != "BRL" {
		t.Errorf("charge must use the server-resolved price, got %+v", resp.Transaction)
	}
}

func TestProcess_OneShotFreeContent(t *testing.T) {
	env := newHandlerEnv(t, "user-1")

	rec := env.do(t, http.MethodPost, "/payments/process", ProcessPaymentRequest{
		ContentType: "lesson",
		Content:     freeLesson(),
		MethodKind:  "card",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[PaymentResponse](t, rec)
	if resp.Grant == nil || resp.Transaction != nil {
		t.Fatalf("free content grants without a charge, got %s", rec.Body.String())
	}
}

func TestProcess_Declined(t *testing.T) {
	env := newHandlerEnv(t, "user-1", gateway.WithFailureRate(1.0))

	rec := env.do(t, http.MethodPost, "/payments/process", ProcessPaymentRequest{
		ContentType: "course",
		Content:     paidCourse(),
		MethodKind:  "card",
		PaymentData: PaymentDataRequest{Token: "pm_test"},
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody[ErrorResponse](t, rec).Code != "gateway_rejected" {
		t.Errorf("unexpected error body: %s", rec.Body.String())
	}
	if env.grants.GrantCount() != 0 {
		t.Error("declined charge must not grant")
	}
}

// startAwaitingPayment drives a bank-transfer charge to
// awaiting_external_confirmation and returns the session id and gateway
// reference.
func startAwaitingPayment(t *testing.T, env *handlerEnv) (string, string) {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/payments/process", ProcessPaymentRequest{
		ContentType: "event",
		Content: map[string]any{
			"eventId":  "event-9",
			"title":    "Workshop presencial",
			"price":    150.0,
			"currency": "BRL",
		},
		MethodKind:  "bank_transfer",
		PaymentData: PaymentDataRequest{BankCode: "001", AccountNumber: "12345-6"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[PaymentResponse](t, rec)
	if resp.Session.Status != string(checkout.StatusAwaitingExternal) {
		t.Fatalf("expected awaiting session, got %s", resp.Session.Status)
	}
	if resp.Transaction.GatewayReference == "" {
		t.Fatal("expected a gateway reference on the pending transaction")
	}

	// register the session for latest-payment scoping
	id, err := uuid.Parse(resp.Session.ID)
	if err != nil {
		t.Fatalf("parse session id: %v", err)
	}
	session, err := env.sessions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	env.transactions.AttachSession(session)

	return resp.Session.ID, resp.Transaction.GatewayReference
}

func TestVerifySession_SettlesAfterExternalConfirmation(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	sessionID, ref := startAwaitingPayment(t, env)

	// still pending on the provider side
	rec := env.do(t, http.MethodGet, "/payments/verify-session/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[PaymentResponse](t, rec); resp.Settled || resp.Grant != nil {
		t.Fatalf("pending charge must not settle, got %s", rec.Body.String())
	}

	env.paytek.Settle(ref)

	rec = env.do(t, http.MethodGet, "/payments/verify-session/"+sessionID, nil)
	resp := decodeBody[PaymentResponse](t, rec)
	if !resp.Settled || resp.Grant == nil {
		t.Fatalf("expected settlement after external confirmation, got %s", rec.Body.String())
	}
	if resp.Session.Status != string(checkout.StatusCompleted) {
		t.Errorf("expected completed session, got %s", resp.Session.Status)
	}

	// reload: idempotent read, not a second settlement
	rec = env.do(t, http.MethodGet, "/payments/verify-session/"+sessionID, nil)
	if resp := decodeBody[PaymentResponse](t, rec); resp.Settled {
		t.Error("second read must not report a new settlement")
	}
	if env.grants.GrantCount() != 1 {
		t.Errorf("expected exactly one grant, got %d", env.grants.GrantCount())
	}
}

func TestVerifyIntent_ResolvesByReference(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	_, ref := startAwaitingPayment(t, env)
	env.paytek.Settle(ref)

	rec := env.do(t, http.MethodGet, "/payments/verify-intent/"+ref, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[PaymentResponse](t, rec); !resp.Settled {
		t.Fatalf("expected settlement via intent reference, got %s", rec.Body.String())
	}
}

func TestLatestPayment_ScopedToContent(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	_, ref := startAwaitingPayment(t, env)
	env.paytek.Settle(ref)

	rec := env.do(t, http.MethodGet, "/payments/latest-payment/event/event-9", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[PaymentResponse](t, rec); !resp.Settled {
		t.Fatalf("expected latest pending payment to settle, got %s", rec.Body.String())
	}
}

func TestConfirmation_RequiresExactlyOneIdentifier(t *testing.T) {
	env := newHandlerEnv(t, "user-1")

	for _, path := range []string{
		"/payments/confirmation",
		"/payments/confirmation?session_id=abc&payment_intent=def",
		"/payments/confirmation?session_id=abc&success=true",
	} {
		rec := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestConfirmation_SuccessFlagUsesLatestPending(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	_, ref := startAwaitingPayment(t, env)
	env.paytek.Settle(ref)

	rec := env.do(t, http.MethodGet, "/payments/confirmation?success=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[PaymentResponse](t, rec); !resp.Settled {
		t.Fatalf("expected settlement via success flag, got %s", rec.Body.String())
	}
}

func TestConfirmation_SessionIDParamAcceptsProviderReference(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	_, ref := startAwaitingPayment(t, env)
	env.paytek.Settle(ref)

	rec := env.do(t, http.MethodGet, "/payments/confirmation?session_id="+ref, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[PaymentResponse](t, rec); !resp.Settled {
		t.Fatalf("expected settlement via provider session id, got %s", rec.Body.String())
	}
}

func TestDownloadInvoice(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	sessionID, ref := startAwaitingPayment(t, env)
	env.paytek.Settle(ref)

	settled := decodeBody[PaymentResponse](t, env.do(t, http.MethodGet, "/payments/verify-session/"+sessionID, nil))
	invoiceID := settled.Transaction.InvoiceID

	rec := env.do(t, http.MethodGet, "/invoices/"+invoiceID+"/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected plain text invoice, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, invoiceID) || !strings.Contains(body, "Workshop presencial") {
		t.Errorf("invoice missing expected fields:\n%s", body)
	}
}

func TestDownloadInvoice_PendingChargeNotFound(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	sessionID, _ := startAwaitingPayment(t, env)

	pending := decodeBody[PaymentResponse](t, env.do(t, http.MethodGet, "/payments/verify-session/"+sessionID, nil))

	rec := env.do(t, http.MethodGet, "/invoices/"+pending.Transaction.InvoiceID+"/download", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unsettled charge, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPaymentConfig(t *testing.T) {
	env := newHandlerEnv(t, "")

	rec := env.do(t, http.MethodGet, "/payments/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cfg := decodeBody[PaymentConfigResponse](t, rec)
	if cfg.PublishableKey != "pk_test_fixture" {
		t.Errorf("expected publishable key in config, got %q", cfg.PublishableKey)
	}
	want := []string{string(checkout.GatewayPaytek), string(checkout.GatewayStripe)}
	if len(cfg.Gateways) != len(want) || cfg.Gateways[0] != want[0] || cfg.Gateways[1] != want[1] {
		t.Errorf("expected gateways %v, got %v", want, cfg.Gateways)
	}
}

func TestTokenize(t *testing.T) {
	env := newHandlerEnv(t, "user-1")

	rec := env.do(t, http.MethodPost, "/payments/tokenize", TokenizeRequest{
		Number:   "4242424242424242",
		ExpMonth: 12,
		ExpYear:  2030,
		CVC:      "123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	token := decodeBody[TokenResponse](t, rec).Token
	if !strings.HasPrefix(token, "pm_") {
		t.Errorf("expected a payment method token, got %q", token)
	}

	// The token is accepted by the charge path.
	pay := env.do(t, http.MethodPost, "/payments/process", ProcessPaymentRequest{
		ContentType: "course",
		Content:     paidCourse(),
		MethodKind:  "card",
		PaymentData: PaymentDataRequest{Token: token},
	})
	if pay.Code != http.StatusCreated {
		t.Fatalf("expected 201 with tokenized card, got %d: %s", pay.Code, pay.Body.String())
	}
}

func TestTokenize_RejectsIncompleteCard(t *testing.T) {
	env := newHandlerEnv(t, "user-1")

	rec := env.do(t, http.MethodPost, "/payments/tokenize", TokenizeRequest{
		Number:   "4242424242424242",
		ExpMonth: 12,
		ExpYear:  2030,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without cvc, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResendConfirmation(t *testing.T) {
	env := newHandlerEnv(t, "user-1")
	sessionID, ref := startAwaitingPayment(t, env)
	env.paytek.Settle(ref)

	settled := decodeBody[PaymentResponse](t, env.do(t, http.MethodGet, "/payments/verify-session/"+sessionID, nil))

	rec := env.do(t, http.MethodPost, "/payments/resend-confirmation", ResendConfirmationRequest{
		InvoiceID: settled.Transaction.InvoiceID,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}
