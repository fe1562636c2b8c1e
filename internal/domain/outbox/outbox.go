package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the checkout core. Consumed by the rest of the
// platform (notifications, progress tracking, finance exports).
const (
	EventPaymentInitiated   = "payment.initiated"
	EventPaymentSettled     = "payment.settled"
	EventPaymentFailed      = "payment.failed"
	EventEntitlementGranted = "entitlement.granted"
)

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// PendingConfirmation reports whether this entry describes a charge that is
// still waiting on the gateway, and if so returns the identifiers needed to
// enqueue it on the confirmations stream.
func (e *Entry) PendingConfirmation() (sessionID, gatewayReference string, ok bool) {
	if e.EventType != EventPaymentInitiated {
		return "", "", false
	}
	status, _ := e.Payload["status"].(string)
	gatewayReference, _ = e.Payload["gateway_reference"].(string)
	if status != "pending" || gatewayReference == "" {
		return "", "", false
	}
	sessionID, _ = e.Payload["session_id"].(string)
	return sessionID, gatewayReference, true
}

func NewEntry(aggregateType, aggregateID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    5,
		CreatedAt:     time.Now(),
	}
}
