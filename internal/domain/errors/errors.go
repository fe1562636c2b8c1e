package errors

import (
	"errors"
	"fmt"
)

var (
	// Content errors
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrContentNotFree         = errors.New("content is not free")

	// Entitlement errors
	ErrEntitlementCheckFailed = errors.New("entitlement check failed")
	ErrAccessStatusUnknown    = errors.New("access status unknown for content")
	ErrAlreadyEntitled        = errors.New("user already has access")

	// Checkout errors
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrPriceMismatch          = errors.New("price does not match server-side content price")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMethodNotSelected      = errors.New("payment method not selected")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("duplicate gateway reference")

	// Gateway errors
	ErrGatewayNotFound    = errors.New("payment gateway not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment rejected by gateway")
	ErrGatewayAuth        = errors.New("payment gateway authentication failed")

	// Reconciliation errors
	ErrReconciliationFailed = errors.New("payment confirmation could not be verified")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
