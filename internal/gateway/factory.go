package gateway

import (
	"fmt"
	"slices"
	"time"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// Factory holds the registered gateways and a circuit breaker per gateway.
// The breaker guards the charge path; verification reads are retried by the
// reconciler instead.
type Factory struct {
	gateways map[checkout.GatewayName]Gateway
	breakers map[checkout.GatewayName]*gobreaker.CircuitBreaker[*ChargeResult]
}

func NewFactory(gateways ...Gateway) *Factory {
	f := &Factory{
		gateways: make(map[checkout.GatewayName]Gateway),
		breakers: make(map[checkout.GatewayName]*gobreaker.CircuitBreaker[*ChargeResult]),
	}

	if len(gateways) == 0 {
		f.Register(NewMockGateway(checkout.GatewayStripe,
			WithLatency(200*time.Millisecond),
		))
		f.Register(NewMockGateway(checkout.GatewayPaytek,
			WithLatency(300*time.Millisecond),
		))
	} else {
		for _, g := range gateways {
			f.Register(g)
		}
	}

	return f
}

func (f *Factory) Register(g Gateway) {
	f.gateways[g.Name()] = g
	f.breakers[g.Name()] = gobreaker.NewCircuitBreaker[*ChargeResult](gobreaker.Settings{
		Name:        string(g.Name()),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

func (f *Factory) Get(name checkout.GatewayName) (Gateway, *gobreaker.CircuitBreaker[*ChargeResult], error) {
	g, ok := f.gateways[name]
	if !ok {
		return nil, nil, fmt.Errorf("gateway %q: %w", name, domainErrors.ErrGatewayNotFound)
	}
	return g, f.breakers[name], nil
}

// Names lists the registered gateways in stable order.
func (f *Factory) Names() []checkout.GatewayName {
	names := make([]checkout.GatewayName, 0, len(f.gateways))
	for name := range f.gateways {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
