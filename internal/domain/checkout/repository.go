package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for checkout session persistence
type Repository interface {
	// Create creates a new session
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// Update updates an existing session
	Update(ctx context.Context, session *Session) error

	// ListByUser lists sessions for a user, optionally filtered by status
	ListByUser(ctx context.Context, userID string, status *Status, limit, offset int) ([]*Session, error)

	// ListAwaitingSince lists sessions stuck in awaiting_external_confirmation
	// that were last updated before the cutoff.
	ListAwaitingSince(ctx context.Context, cutoff time.Time, limit int) ([]*Session, error)
}
