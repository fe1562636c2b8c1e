package controller

import (
	"net/http"
	"strconv"

	appCheckout "github.com/aulaviva/checkout/internal/application/checkout"
	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/aulaviva/checkout/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CheckoutController drives the checkout session lifecycle.
type CheckoutController struct {
	start        *appCheckout.StartCheckoutUseCase
	getSession   *appCheckout.GetSessionUseCase
	listSessions *appCheckout.ListSessionsUseCase
	selectMethod *appCheckout.SelectMethodUseCase
	pay          *appCheckout.ProcessPaymentUseCase
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(
	start *appCheckout.StartCheckoutUseCase,
	getSession *appCheckout.GetSessionUseCase,
	listSessions *appCheckout.ListSessionsUseCase,
	selectMethod *appCheckout.SelectMethodUseCase,
	pay *appCheckout.ProcessPaymentUseCase,
) *CheckoutController {
	return &CheckoutController{
		start:        start,
		getSession:   getSession,
		listSessions: listSessions,
		selectMethod: selectMethod,
		pay:          pay,
	}
}

// Start handles POST /api/v1/checkout/sessions
func (h *CheckoutController) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req StartCheckoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ref, err := content.Resolve(req.ContentType, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.start.Execute(r.Context(), appCheckout.StartCheckoutRequest{
		UserID: userID,
		Ref:    ref,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		Session: FromSession(resp.Session),
		Grant:   FromGrant(resp.Grant),
	})
}

// Get handles GET /api/v1/checkout/sessions/{id}
func (h *CheckoutController) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid session id", Code: "invalid_id"})
		return
	}

	session, err := h.getSession.Execute(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSession(session))
}

// List handles GET /api/v1/checkout/sessions
func (h *CheckoutController) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	req := appCheckout.ListSessionsRequest{UserID: userID}
	if s := r.URL.Query().Get("status"); s != "" {
		status := checkout.Status(s)
		req.Status = &status
	}
	req.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	req.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	sessions, err := h.listSessions.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, FromSession(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SelectMethod handles POST /api/v1/checkout/sessions/{id}/method
func (h *CheckoutController) SelectMethod(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid session id", Code: "invalid_id"})
		return
	}

	var req SelectMethodRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.selectMethod.Execute(r.Context(), appCheckout.SelectMethodRequest{
		UserID:    userID,
		SessionID: id,
		Kind:      checkout.MethodKind(req.Kind),
		Display:   req.Display,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromSession(session))
}

// Pay handles POST /api/v1/checkout/sessions/{id}/pay
func (h *CheckoutController) Pay(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid session id", Code: "invalid_id"})
		return
	}

	var req PayRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.pay.Execute(r.Context(), appCheckout.ProcessPaymentRequest{
		UserID:      userID,
		SessionID:   id,
		AmountCents: floatToCents(req.Amount),
		Currency:    req.Currency,
		Method:      toMethodDetails(checkout.MethodKind(req.MethodKind), req.PaymentData),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if resp.Session != nil && resp.Session.Status == checkout.StatusAwaitingExternal {
		status = http.StatusAccepted
	}
	writeJSON(w, status, FromPaymentOutcome(resp))
}

func toMethodDetails(kind checkout.MethodKind, data PaymentDataRequest) gateway.MethodDetails {
	return gateway.MethodDetails{
		Kind:          kind,
		Token:         data.Token,
		Provider:      data.Provider,
		PhoneNumber:   data.PhoneNumber,
		BankCode:      data.BankCode,
		AccountNumber: data.AccountNumber,
	}
}
