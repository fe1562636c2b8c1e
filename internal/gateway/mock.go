package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/google/uuid"
)

// MockGateway simulates a gateway in memory. It remembers every charge so
// Verify answers consistently across calls, and exposes Settle/Reject knobs
// for driving asynchronous confirmation in tests and local runs.
type MockGateway struct {
	name        checkout.GatewayName
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0

	mu      sync.Mutex
	charges map[string]*VerifyResult

	chargeCalls   int
	tokenizeCalls int
	verifyCalls   int
}

type MockGatewayOption func(*MockGateway)

func WithFailureRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.failureRate = rate }
}

func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

func WithTimeoutRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.timeoutRate = rate }
}

func NewMockGateway(name checkout.GatewayName, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		name:    name,
		latency: 0,
		charges: make(map[string]*VerifyResult),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() checkout.GatewayName { return g.name }

func (g *MockGateway) Tokenize(ctx context.Context, card CardDetails) (string, error) {
	if err := g.simulate(ctx); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.tokenizeCalls++
	g.mu.Unlock()
	return fmt.Sprintf("pm_%s", uuid.New().String()[:8]), nil
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeCalls++

	if rand.Float64() < g.failureRate {
		return &ChargeResult{
			Status:        StatusFailed,
			DeclineReason: fmt.Sprintf("%s: simulated decline for session %s", g.name, req.SessionID),
		}, domainErrors.ErrGatewayRejected
	}

	ref := fmt.Sprintf("%s_ref_%s", g.name, uuid.New().String()[:8])
	status := StatusSucceeded
	if req.Method.Kind.IsAsync() {
		status = StatusPending
	}

	g.charges[ref] = &VerifyResult{
		GatewayReference: ref,
		Status:           status,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		SessionID:        req.SessionID,
	}

	return &ChargeResult{GatewayReference: ref, Status: status}, nil
}

func (g *MockGateway) Verify(ctx context.Context, gatewayReference string) (*VerifyResult, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++

	res, ok := g.charges[gatewayReference]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *res
	return &cp, nil
}

// Settle flips a pending charge to succeeded, simulating an out-of-band
// settlement event (mobile confirmation, bank transfer landing).
func (g *MockGateway) Settle(gatewayReference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.charges[gatewayReference]; ok {
		res.Status = StatusSucceeded
	}
}

// Reject flips a charge to failed with the given reason.
func (g *MockGateway) Reject(gatewayReference, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.charges[gatewayReference]; ok {
		res.Status = StatusFailed
		res.DeclineReason = reason
	}
}

// ChargeCalls returns how many charges were attempted.
func (g *MockGateway) ChargeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls
}

// VerifyCalls returns how many verification reads were made.
func (g *MockGateway) VerifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

func (g *MockGateway) simulate(ctx context.Context) error {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if rand.Float64() < g.timeoutRate {
		return domainErrors.ErrGatewayUnavailable
	}
	return nil
}
