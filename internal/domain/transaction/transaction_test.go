package transaction

import (
	"strings"
	"testing"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	sessionID := uuid.New()
	tx, err := New(sessionID, 50000, "MZN", checkout.GatewayStripe)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, sessionID, tx.SessionID)
	assert.True(t, strings.HasPrefix(tx.InvoiceID, "INV-"))
	assert.False(t, tx.IsTerminal())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(uuid.New(), 0, "MZN", checkout.GatewayStripe)
	assert.Error(t, err)

	_, err = New(uuid.New(), 100, "MZ", checkout.GatewayStripe)
	assert.Error(t, err)
}

func TestMarkSucceeded_Idempotent(t *testing.T) {
	tx, _ := New(uuid.New(), 100, "MZN", checkout.GatewayPaytek)
	tx.MarkSucceeded()
	first := tx.UpdatedAt

	tx.MarkSucceeded()
	assert.Equal(t, StatusSucceeded, tx.Status)
	assert.Equal(t, first, tx.UpdatedAt, "repeated success must be a no-op")
}

func TestMarkFailed(t *testing.T) {
	tx, _ := New(uuid.New(), 100, "MZN", checkout.GatewayPaytek)
	tx.MarkFailed("card declined")

	assert.Equal(t, StatusFailed, tx.Status)
	require.NotNil(t, tx.FailureReason)
	assert.Equal(t, "card declined", *tx.FailureReason)
	assert.True(t, tx.IsTerminal())
}
