package controller

import (
	"fmt"
	"net/http"
	"strings"

	appCheckout "github.com/aulaviva/checkout/internal/application/checkout"
	"github.com/aulaviva/checkout/internal/application/reconcile"
	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/aulaviva/checkout/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentController handles the one-shot payment flow and every confirmation
// return path. All verify endpoints resolve through the reconciler, so a
// redirect, a poll and a page reload converge on the same records.
type PaymentController struct {
	start          *appCheckout.StartCheckoutUseCase
	selectM        *appCheckout.SelectMethodUseCase
	pay            *appCheckout.ProcessPaymentUseCase
	getInvoice     *appCheckout.GetInvoiceUseCase
	resend         *appCheckout.ResendConfirmationUseCase
	reconciler     *reconcile.Reconciler
	gateways       *gateway.Factory
	publishableKey string
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	start *appCheckout.StartCheckoutUseCase,
	selectM *appCheckout.SelectMethodUseCase,
	pay *appCheckout.ProcessPaymentUseCase,
	getInvoice *appCheckout.GetInvoiceUseCase,
	resend *appCheckout.ResendConfirmationUseCase,
	reconciler *reconcile.Reconciler,
	gateways *gateway.Factory,
	publishableKey string,
) *PaymentController {
	return &PaymentController{
		start:          start,
		selectM:        selectM,
		pay:            pay,
		getInvoice:     getInvoice,
		resend:         resend,
		reconciler:     reconciler,
		gateways:       gateways,
		publishableKey: publishableKey,
	}
}

// Config handles GET /api/v1/payments/config — the client bootstrap payload:
// the stripe publishable key for client-side tokenization and the gateways
// this deployment has registered.
func (h *PaymentController) Config(w http.ResponseWriter, r *http.Request) {
	names := h.gateways.Names()
	resp := PaymentConfigResponse{
		PublishableKey: h.publishableKey,
		Gateways:       make([]string, 0, len(names)),
	}
	for _, name := range names {
		resp.Gateways = append(resp.Gateways, string(name))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tokenize handles POST /api/v1/payments/tokenize — server-side card
// tokenization for clients that cannot run the stripe SDK. The card gateway
// turns raw card details into an opaque token; the pay endpoints only ever
// see the token.
func (h *PaymentController) Tokenize(w http.ResponseWriter, r *http.Request) {
	var req TokenizeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	gwName, err := checkout.GatewayFor(checkout.MethodCard)
	if err != nil {
		writeError(w, err)
		return
	}
	gw, _, err := h.gateways.Get(gwName)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := gw.Tokenize(r.Context(), gateway.CardDetails{
		Number:     req.Number,
		ExpMonth:   int64(req.ExpMonth),
		ExpYear:    int64(req.ExpYear),
		CVC:        req.CVC,
		HolderName: req.HolderName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Process handles POST /api/v1/payments/process — the one-shot
// start+method+pay flow used by the mobile client. The charge amount is the
// server-resolved content price; the payload price only identifies the item.
func (h *PaymentController) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req ProcessPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ref, err := content.Resolve(req.ContentType, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	started, err := h.start.Execute(r.Context(), appCheckout.StartCheckoutRequest{
		UserID: userID,
		Ref:    ref,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if started.Grant != nil {
		// free content granted on the spot, nothing to charge
		writeJSON(w, http.StatusCreated, PaymentResponse{
			Session: FromSession(started.Session),
			Grant:   FromGrant(started.Grant),
			Settled: true,
		})
		return
	}

	kind := checkout.MethodKind(req.MethodKind)
	session, err := h.selectM.Execute(r.Context(), appCheckout.SelectMethodRequest{
		UserID:    userID,
		SessionID: started.Session.ID,
		Kind:      kind,
		Display:   req.Display,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.pay.Execute(r.Context(), appCheckout.ProcessPaymentRequest{
		UserID:      userID,
		SessionID:   session.ID,
		AmountCents: ref.PriceCents,
		Currency:    ref.Currency,
		Method:      toMethodDetails(kind, req.PaymentData),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.Session != nil && resp.Session.Status == checkout.StatusAwaitingExternal {
		status = http.StatusAccepted
	}
	writeJSON(w, status, FromPaymentOutcome(resp))
}

// VerifySession handles GET /api/v1/payments/verify-session/{sessionID}
func (h *PaymentController) VerifySession(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	h.reconcileSessionParam(w, r, userID, chi.URLParam(r, "sessionID"))
}

// VerifyIntent handles GET /api/v1/payments/verify-intent/{paymentIntentID}
func (h *PaymentController) VerifyIntent(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	res, err := h.reconciler.ByGatewayReference(r.Context(), userID, chi.URLParam(r, "paymentIntentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromReconcileResult(res))
}

// LatestPayment handles GET /api/v1/payments/latest-payment and
// GET /api/v1/payments/latest-payment/{contentType}/{contentID}
func (h *PaymentController) LatestPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var contentType content.Type
	if s := chi.URLParam(r, "contentType"); s != "" {
		t, err := content.ParseType(s)
		if err != nil {
			writeError(w, err)
			return
		}
		contentType = t
	}

	res, err := h.reconciler.LatestPending(r.Context(), userID, contentType, chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromReconcileResult(res))
}

// Confirmation handles GET /api/v1/payments/confirmation — the redirect
// target after an external payment page. Exactly one of session_id,
// payment_intent or success=true identifies the charge.
func (h *PaymentController) Confirmation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	sessionID := q.Get("session_id")
	paymentIntent := q.Get("payment_intent")
	success := q.Get("success") == "true"

	identifiers := 0
	for _, present := range []bool{sessionID != "", paymentIntent != "", success} {
		if present {
			identifiers++
		}
	}
	if identifiers != 1 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "exactly one of session_id, payment_intent or success=true is expected",
			Code:  "validation_error",
		})
		return
	}

	switch {
	case sessionID != "":
		h.reconcileSessionParam(w, r, userID, sessionID)
	case paymentIntent != "":
		res, err := h.reconciler.ByGatewayReference(r.Context(), userID, paymentIntent)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, FromReconcileResult(res))
	default:
		res, err := h.reconciler.LatestPending(r.Context(), userID, "", "")
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, FromReconcileResult(res))
	}
}

// reconcileSessionParam accepts either our session uuid or a provider-side
// checkout session reference; redirects carry the provider's id.
func (h *PaymentController) reconcileSessionParam(w http.ResponseWriter, r *http.Request, userID, raw string) {
	var (
		res *reconcile.Result
		err error
	)
	if id, parseErr := uuid.Parse(raw); parseErr == nil {
		res, err = h.reconciler.BySession(r.Context(), userID, id)
	} else {
		res, err = h.reconciler.ByGatewayReference(r.Context(), userID, raw)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromReconcileResult(res))
}

// DownloadInvoice handles GET /api/v1/invoices/{invoiceID}/download.
// Renders a plain-text receipt for a settled charge.
func (h *PaymentController) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	inv, err := h.getInvoice.Execute(r.Context(), userID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recibo %s\n", inv.Transaction.InvoiceID)
	fmt.Fprintf(&b, "Data: %s\n", inv.Transaction.UpdatedAt.Format("02/01/2006"))
	fmt.Fprintf(&b, "%s: %s\n", inv.Session.Content.Type.Label(), inv.Session.Content.Title)
	fmt.Fprintf(&b, "Valor: %.2f %s\n", centsToFloat(inv.Transaction.AmountCents), inv.Transaction.Currency)
	fmt.Fprintf(&b, "Pagamento: %s (%s)\n", inv.Session.MethodKind, inv.Transaction.Gateway)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", inv.Transaction.InvoiceID+".txt"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}

// ResendConfirmation handles POST /api/v1/payments/resend-confirmation.
// Re-queues the settlement event of a settled charge for delivery.
func (h *PaymentController) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req ResendConfirmationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.resend.Execute(r.Context(), userID, req.InvoiceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
