package controller

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrUnsupportedContentType, http.StatusNotFound, "unsupported_content_type"},
	{domainErrors.ErrContentNotFree, http.StatusUnprocessableEntity, "content_not_free"},
	{domainErrors.ErrAlreadyEntitled, http.StatusConflict, "already_entitled"},
	{domainErrors.ErrEntitlementCheckFailed, http.StatusServiceUnavailable, "entitlement_check_failed"},
	{domainErrors.ErrSessionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrPriceMismatch, http.StatusConflict, "price_mismatch"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrMethodNotSelected, http.StatusUnprocessableEntity, "method_not_selected"},
	{domainErrors.ErrInvalidPaymentMethod, http.StatusUnprocessableEntity, "invalid_payment_method"},
	{domainErrors.ErrDuplicateReference, http.StatusConflict, "duplicate_reference"},
	{domainErrors.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{domainErrors.ErrGatewayRejected, http.StatusPaymentRequired, "gateway_rejected"},
	{domainErrors.ErrGatewayAuth, http.StatusBadGateway, "gateway_error"},
	{domainErrors.ErrGatewayNotFound, http.StatusUnprocessableEntity, "gateway_not_found"},
	{domainErrors.ErrReconciliationFailed, http.StatusServiceUnavailable, "reconciliation_failed"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domainErrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.err == domainErrors.ErrGatewayAuth {
				// Configuration-fatal; never leak provider auth details.
				resp.Error = "payment provider error"
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

// decodeRawContent reads a polymorphic content payload. Validation happens in
// the content resolver, which knows the per-type identifier fields.
func decodeRawContent(r *http.Request) (map[string]any, error) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if len(raw) == 0 {
		return nil, domainErrors.NewValidationError("body", "empty content payload")
	}
	return raw, nil
}

// centsToFloat converts cents to currency units for API responses.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100
}

// floatToCents converts currency units to cents for internal use.
func floatToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
