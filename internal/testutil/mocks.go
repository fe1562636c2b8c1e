package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/aulaviva/checkout/internal/domain/outbox"
	"github.com/aulaviva/checkout/internal/domain/transaction"
	"github.com/google/uuid"
)

// --- Grant Store Mock ---

type grantKey struct {
	userID      string
	contentType content.Type
	contentID   string
}

// MockGrantStore is an in-memory implementation of grant.Store.
type MockGrantStore struct {
	mu     sync.Mutex
	grants map[grantKey]*grant.AccessGrant

	GrantIfAbsentFunc func(ctx context.Context, userID string, contentType content.Type, contentID string, source grant.Source) (*grant.AccessGrant, error)
	HasGrantFunc      func(ctx context.Context, userID string, contentType content.Type, contentID string) (bool, error)
}

func NewMockGrantStore() *MockGrantStore {
	return &MockGrantStore{grants: make(map[grantKey]*grant.AccessGrant)}
}

func (m *MockGrantStore) GrantIfAbsent(ctx context.Context, userID string, contentType content.Type, contentID string, source grant.Source) (*grant.AccessGrant, error) {
	if m.GrantIfAbsentFunc != nil {
		return m.GrantIfAbsentFunc(ctx, userID, contentType, contentID, source)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey{userID, contentType, contentID}
	if existing, ok := m.grants[key]; ok {
		return existing, nil
	}
	g, err := grant.New(userID, contentType, contentID, source)
	if err != nil {
		return nil, err
	}
	m.grants[key] = g
	return g, nil
}

func (m *MockGrantStore) HasGrant(ctx context.Context, userID string, contentType content.Type, contentID string) (bool, error) {
	if m.HasGrantFunc != nil {
		return m.HasGrantFunc(ctx, userID, contentType, contentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[grantKey{userID, contentType, contentID}]
	return ok, nil
}

func (m *MockGrantStore) ListByUser(ctx context.Context, userID string) ([]*grant.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*grant.AccessGrant
	for k, g := range m.grants {
		if k.userID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

// GrantCount returns the number of stored grants.
func (m *MockGrantStore) GrantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grants)
}

// --- Checkout Session Repository Mock ---

// MockSessionRepository is an in-memory implementation of checkout.Repository.
type MockSessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*checkout.Session
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[uuid.UUID]*checkout.Session)}
}

func (m *MockSessionRepository) Create(ctx context.Context, s *checkout.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSessionRepository) Update(ctx context.Context, s *checkout.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return domainErrors.ErrSessionNotFound
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID string, status *checkout.Status, limit, offset int) ([]*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*checkout.Session
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		if status != nil && s.Status != *status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockSessionRepository) ListAwaitingSince(ctx context.Context, cutoff time.Time, limit int) ([]*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*checkout.Session
	for _, s := range m.sessions {
		if s.Status == checkout.StatusAwaitingExternal && s.UpdatedAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Transaction Repository Mock ---

// MockTransactionRepository is an in-memory implementation of transaction.Repository.
type MockTransactionRepository struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*transaction.Transaction
	// sessionUser lets LatestPending resolve user/content scoping; tests
	// register sessions through AttachSession.
	sessionRefs map[uuid.UUID]sessionRef
}

type sessionRef struct {
	userID      string
	contentType content.Type
	contentID   string
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[uuid.UUID]*transaction.Transaction),
		sessionRefs:  make(map[uuid.UUID]sessionRef),
	}
}

// AttachSession registers session ownership so LatestPending can scope by
// user and content the way the SQL join does.
func (m *MockTransactionRepository) AttachSession(s *checkout.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionRefs[s.ID] = sessionRef{s.UserID, s.Content.Type, s.Content.ID}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.transactions {
		if tx.GatewayReference != "" && existing.GatewayReference == tx.GatewayReference {
			return domainErrors.ErrDuplicateReference
		}
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *MockTransactionRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.InvoiceID == invoiceID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByGatewayReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.GatewayReference == reference {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *MockTransactionRepository) LatestForSession(ctx context.Context, sessionID uuid.UUID) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *transaction.Transaction
	for _, tx := range m.transactions {
		if tx.SessionID != sessionID {
			continue
		}
		if latest == nil || tx.CreatedAt.After(latest.CreatedAt) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockTransactionRepository) LatestPending(ctx context.Context, userID string, contentType content.Type, contentID string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *transaction.Transaction
	for _, tx := range m.transactions {
		if tx.Status != transaction.StatusPending {
			continue
		}
		ref, ok := m.sessionRefs[tx.SessionID]
		if !ok || ref.userID != userID {
			continue
		}
		if contentType != "" && (ref.contentType != contentType || ref.contentID != contentID) {
			continue
		}
		if latest == nil || tx.CreatedAt.After(latest.CreatedAt) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; !ok {
		return domainErrors.ErrTransactionNotFound
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) ListPending(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range m.transactions {
		if tx.Status == transaction.StatusPending {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	Entries []*outbox.Entry
	err     error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) FailWith(err error) { m.err = err }

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.Entries {
		if e.Status == outbox.StatusPending {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.Entries {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return m.setStatus(id, outbox.StatusPublished)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return m.setStatus(id, outbox.StatusFailed)
}

func (m *MockOutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	return m.setStatus(id, outbox.StatusPending)
}

func (m *MockOutboxRepository) setStatus(id uuid.UUID, status outbox.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			e.Status = status
			return nil
		}
	}
	return nil
}

// EventTypes returns inserted event types in insertion order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.EventType)
	}
	return out
}

// --- Transaction Manager Mock ---

// MockTransactionManager runs the function directly without a database.
type MockTransactionManager struct{}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Locker Mock ---

// NoopLocker satisfies the reconciler's Locker port without Redis.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
