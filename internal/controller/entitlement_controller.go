package controller

import (
	"net/http"
	"strconv"

	"github.com/aulaviva/checkout/internal/application/entitlement"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// EntitlementController answers access checks and free acquisitions.
type EntitlementController struct {
	checkAccess *entitlement.CheckAccessUseCase
	grantFree   *entitlement.GrantFreeUseCase
}

// NewEntitlementController creates a new EntitlementController.
func NewEntitlementController(
	checkAccess *entitlement.CheckAccessUseCase,
	grantFree *entitlement.GrantFreeUseCase,
) *EntitlementController {
	return &EntitlementController{checkAccess: checkAccess, grantFree: grantFree}
}

// AccessStatus handles GET /api/v1/content/{contentType}/{id}/access-status.
// Anonymous requests are allowed and always report no access. The optional
// price/currency query parameters only drive the call-to-action verb; they
// are never used to charge.
func (h *EntitlementController) AccessStatus(w http.ResponseWriter, r *http.Request) {
	contentType, err := content.ParseType(chi.URLParam(r, "contentType"))
	if err != nil {
		writeError(w, err)
		return
	}

	ref := content.Reference{
		Type:     contentType,
		ID:       chi.URLParam(r, "id"),
		Currency: r.URL.Query().Get("currency"),
	}
	if s := r.URL.Query().Get("price"); s != "" {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid price", Code: "validation_error"})
			return
		}
		ref.PriceCents = floatToCents(price)
	}

	userID, _ := middleware.GetUserID(r.Context())
	resp, err := h.checkAccess.Execute(r.Context(), entitlement.CheckAccessRequest{
		UserID: userID,
		Ref:    ref,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AccessStatusResponse{
		HasAccess:       resp.HasAccess,
		FreeAcquisition: resp.FreeAcquisition,
		Verb:            resp.Verb,
	})
}

// GrantAccess handles POST /api/v1/content/{contentType}/{id}/access.
// It grants free content directly, skipping checkout; priced content is
// rejected.
func (h *EntitlementController) GrantAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	raw, err := decodeRawContent(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contentType := chi.URLParam(r, "contentType")
	if t, err := content.ParseType(contentType); err == nil {
		// The path identifier wins over whatever the payload carries.
		raw[t.IDField()] = chi.URLParam(r, "id")
	}

	ref, err := content.Resolve(contentType, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := h.grantFree.Execute(r.Context(), entitlement.GrantFreeRequest{
		UserID: userID,
		Ref:    ref,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromGrant(g))
}
