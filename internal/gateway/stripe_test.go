package gateway

import (
	"errors"
	"net/http"
	"testing"

	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v81"
)

func TestMapStripeError_CardDeclineIsRejected(t *testing.T) {
	err := mapStripeError(&stripe.Error{
		Type:        stripe.ErrorTypeCard,
		Msg:         "Your card was declined.",
		DeclineCode: stripe.DeclineCodeInsufficientFunds,
	})

	assert.ErrorIs(t, err, domainErrors.ErrGatewayRejected)

	var dErr *domainErrors.DomainError
	assert.True(t, errors.As(err, &dErr))
	assert.Equal(t, "card_declined", dErr.Code)
	assert.Equal(t, string(stripe.DeclineCodeInsufficientFunds), dErr.Message)
}

func TestMapStripeError_UnauthorizedIsGatewayAuth(t *testing.T) {
	err := mapStripeError(&stripe.Error{
		Type:           stripe.ErrorTypeInvalidRequest,
		HTTPStatusCode: http.StatusUnauthorized,
		Msg:            "Invalid API Key provided",
	})

	assert.ErrorIs(t, err, domainErrors.ErrGatewayAuth)
}

func TestMapStripeError_InvalidRequestIsRejected(t *testing.T) {
	err := mapStripeError(&stripe.Error{
		Type: stripe.ErrorTypeInvalidRequest,
		Msg:  "No such payment_method",
	})

	assert.ErrorIs(t, err, domainErrors.ErrGatewayRejected)
}

func TestMapStripeError_APIErrorIsUnavailable(t *testing.T) {
	err := mapStripeError(&stripe.Error{
		Type: stripe.ErrorTypeAPI,
		Msg:  "An error occurred",
	})

	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}

func TestMapStripeError_NonStripeErrorIsUnavailable(t *testing.T) {
	err := mapStripeError(errors.New("dial tcp: connection refused"))

	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}
