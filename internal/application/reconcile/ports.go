package reconcile

import (
	"context"

	domainCheckout "github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/gateway"
	"github.com/sony/gobreaker/v2"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// GatewayProvider resolves a gateway by name. Satisfied by gateway.Factory.
type GatewayProvider interface {
	Get(name domainCheckout.GatewayName) (gateway.Gateway, *gobreaker.CircuitBreaker[*gateway.ChargeResult], error)
}

// Locker serializes concurrent confirmations of the same charge. Satisfied by
// the redis distributed lock; tests use a pass-through.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
