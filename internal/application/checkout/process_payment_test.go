package checkout

import (
	"context"
	"errors"
	"testing"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/domain/transaction"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/aulaviva/checkout/internal/testutil"
)

type paymentFixture struct {
	sessions     *testutil.MockSessionRepository
	transactions *testutil.MockTransactionRepository
	grants       *testutil.MockGrantStore
	outboxRepo   *testutil.MockOutboxRepository
	stripe       *gateway.MockGateway
	paytek       *gateway.MockGateway
	uc           *ProcessPaymentUseCase
}

func newPaymentFixture(t *testing.T, opts ...gateway.MockGatewayOption) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		sessions:     testutil.NewMockSessionRepository(),
		transactions: testutil.NewMockTransactionRepository(),
		grants:       testutil.NewMockGrantStore(),
		outboxRepo:   testutil.NewMockOutboxRepository(),
		stripe:       gateway.NewMockGateway(domainCheckout.GatewayStripe, opts...),
		paytek:       gateway.NewMockGateway(domainCheckout.GatewayPaytek, opts...),
	}
	f.uc = NewProcessPaymentUseCase(
		f.sessions,
		f.transactions,
		f.grants,
		gateway.NewFactory(f.stripe, f.paytek),
		f.outboxRepo,
		testutil.NewMockTransactionManager(),
	)
	return f
}

func (f *paymentFixture) sessionWithMethod(t *testing.T, kind domainCheckout.MethodKind) *domainCheckout.Session {
	t.Helper()
	session, err := domainCheckout.NewSession("user-1", paidCourse())
	if err != nil {
		t.Fatal(err)
	}
	if err := session.SelectMethod(kind, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	return session
}

func TestProcessPayment_CardSettlesSynchronously(t *testing.T) {
	f := newPaymentFixture(t)
	session := f.sessionWithMethod(t, domainCheckout.MethodCard)

	resp, err := f.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 14900,
		Currency:    "BRL",
		Method:      gateway.MethodDetails{Kind: domainCheckout.MethodCard, Token: "pm_test"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Transaction.Status != transaction.StatusSucceeded {
		t.Errorf("expected succeeded transaction, got %s", resp.Transaction.Status)
	}
	if resp.Session.Status != domainCheckout.StatusCompleted {
		t.Errorf("expected completed session, got %s", resp.Session.Status)
	}
	if resp.Grant == nil {
		t.Fatal("expected a grant on synchronous settlement")
	}

	events := f.outboxRepo.EventTypes()
	if len(events) != 2 || events[0] != outbox.EventPaymentSettled || events[1] != outbox.EventEntitlementGranted {
		t.Errorf("expected settled + granted events, got %v", events)
	}
}

func TestProcessPayment_PriceMismatchFailsSession(t *testing.T) {
	f := newPaymentFixture(t)
	session := f.sessionWithMethod(t, domainCheckout.MethodCard)

	_, err := f.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 9900, // stale client price
		Currency:    "BRL",
	})
	if !errors.Is(err, domainErrors.ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch, got %v", err)
	}

	stored, _ := f.sessions.GetByID(context.Background(), session.ID)
	if stored.Status != domainCheckout.StatusFailed {
		t.Errorf("session must fail without reaching processing, got %s", stored.Status)
	}
	if stored.LastError == nil {
		t.Error("expected a recorded failure reason")
	}
	if f.stripe.ChargeCalls() != 0 {
		t.Error("no charge may happen on a price mismatch")
	}
	if f.transactions.Count() != 0 {
		t.Error("no transaction may be recorded on a price mismatch")
	}

	// Selecting a method again brings the session back off the failed state.
	if err := stored.SelectMethod(domainCheckout.MethodCard, nil); err != nil {
		t.Fatalf("failed session must stay retryable: %v", err)
	}
	if stored.Status != domainCheckout.StatusMethodSelected {
		t.Errorf("expected method_selected after retry, got %s", stored.Status)
	}
}

func TestProcessPayment_DeclineFailsAttempt(t *testing.T) {
	f := newPaymentFixture(t, gateway.WithFailureRate(1.0))
	session := f.sessionWithMethod(t, domainCheckout.MethodCard)

	_, err := f.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 14900,
		Currency:    "BRL",
	})
	if !errors.Is(err, domainErrors.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}

	stored, _ := f.sessions.GetByID(context.Background(), session.ID)
	if stored.Status != domainCheckout.StatusFailed {
		t.Errorf("expected failed session, got %s", stored.Status)
	}
	if stored.LastError == nil {
		t.Error("expected a recorded failure reason")
	}

	tx, err := f.transactions.LatestForSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("attempt must be recorded: %v", err)
	}
	if tx.Status != transaction.StatusFailed {
		t.Errorf("expected failed transaction, got %s", tx.Status)
	}
	if f.grants.GrantCount() != 0 {
		t.Error("declined charge must not grant")
	}
}

func TestProcessPayment_RetryAfterDeclineCreatesNewTransaction(t *testing.T) {
	f := newPaymentFixture(t, gateway.WithFailureRate(1.0))
	session := f.sessionWithMethod(t, domainCheckout.MethodCard)

	_, err := f.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 14900,
		Currency:    "BRL",
	})
	if !errors.Is(err, domainErrors.ErrGatewayRejected) {
		t.Fatalf("expected decline, got %v", err)
	}

	// user retries with a healthy gateway
	healthy := newPaymentFixture(t)
	healthy.sessions = f.sessions
	healthy.transactions = f.transactions
	healthy.grants = f.grants
	healthy.uc = NewProcessPaymentUseCase(
		f.sessions, f.transactions, f.grants,
		gateway.NewFactory(healthy.stripe, healthy.paytek),
		healthy.outboxRepo, testutil.NewMockTransactionManager(),
	)

	stored, _ := f.sessions.GetByID(context.Background(), session.ID)
	if err := stored.SelectMethod(domainCheckout.MethodCard, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Update(context.Background(), stored); err != nil {
		t.Fatal(err)
	}

	resp, err := healthy.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 14900,
		Currency:    "BRL",
	})
	if err != nil {
		t.Fatalf("retry should settle: %v", err)
	}
	if resp.Session.Status != domainCheckout.StatusCompleted {
		t.Errorf("expected completed, got %s", resp.Session.Status)
	}
	if f.transactions.Count() != 2 {
		t.Errorf("each attempt gets its own transaction, got %d", f.transactions.Count())
	}
}

func TestProcessPayment_AsyncMethodParksSession(t *testing.T) {
	f := newPaymentFixture(t)
	session := f.sessionWithMethod(t, domainCheckout.MethodBankTransfer)

	resp, err := f.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 14900,
		Currency:    "BRL",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Session.Status != domainCheckout.StatusAwaitingExternal {
		t.Errorf("expected awaiting_external_confirmation, got %s", resp.Session.Status)
	}
	if resp.Transaction.Status != transaction.StatusPending {
		t.Errorf("expected pending transaction, got %s", resp.Transaction.Status)
	}
	if resp.Transaction.GatewayReference == "" {
		t.Error("expected a gateway reference for the pending charge")
	}
	if resp.Grant != nil {
		t.Error("no grant before external confirmation")
	}

	events := f.outboxRepo.EventTypes()
	if len(events) != 1 || events[0] != outbox.EventPaymentInitiated {
		t.Errorf("expected payment.initiated, got %v", events)
	}
}

func TestProcessPayment_WithoutMethodRejected(t *testing.T) {
	f := newPaymentFixture(t)
	session, err := domainCheckout.NewSession("user-1", paidCourse())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	_, err = f.uc.Execute(context.Background(), ProcessPaymentRequest{
		UserID:      "user-1",
		SessionID:   session.ID,
		AmountCents: 14900,
		Currency:    "BRL",
	})
	if !errors.Is(err, domainErrors.ErrMethodNotSelected) {
		t.Errorf("expected ErrMethodNotSelected, got %v", err)
	}
	if f.stripe.ChargeCalls() != 0 {
		t.Error("no charge without a selected method")
	}
}
