package checkout

import (
	"context"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/sony/gobreaker/v2"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// GatewayProvider resolves a gateway and its circuit breaker by name.
// Satisfied by gateway.Factory.
type GatewayProvider interface {
	Get(name domainCheckout.GatewayName) (gateway.Gateway, *gobreaker.CircuitBreaker[*gateway.ChargeResult], error)
}
