package gateway

import (
	"testing"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory_WithDefaultGateways(t *testing.T) {
	factory := NewFactory()

	assert.NotNil(t, factory)
	assert.Len(t, factory.gateways, 2) // stripe and paytek
	assert.Len(t, factory.breakers, 2)
}

func TestNewFactory_WithCustomGateways(t *testing.T) {
	mock := NewMockGateway(checkout.GatewayStripe)
	factory := NewFactory(mock)

	assert.Len(t, factory.gateways, 1)
	assert.Contains(t, factory.gateways, checkout.GatewayStripe)
}

func TestFactory_Get(t *testing.T) {
	factory := NewFactory()

	g, breaker, err := factory.Get(checkout.GatewayStripe)
	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.NotNil(t, breaker)
	assert.Equal(t, checkout.GatewayStripe, g.Name())

	g, breaker, err = factory.Get(checkout.GatewayPaytek)
	require.NoError(t, err)
	assert.Equal(t, checkout.GatewayPaytek, g.Name())
	assert.NotNil(t, breaker)
}

func TestFactory_Get_Unknown(t *testing.T) {
	factory := NewFactory()

	g, breaker, err := factory.Get(checkout.GatewayName("mpesa"))
	assert.ErrorIs(t, err, domainErrors.ErrGatewayNotFound)
	assert.Nil(t, g)
	assert.Nil(t, breaker)
}
