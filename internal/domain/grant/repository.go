package grant

import (
	"context"

	"github.com/aulaviva/checkout/internal/domain/content"
)

// Store is the single source of truth for access grants.
type Store interface {
	// GrantIfAbsent atomically inserts a grant unless one already exists for
	// the tuple. Concurrent and duplicate invocations with the same tuple
	// return the same grant; the loser of a race observes the winner's row.
	GrantIfAbsent(ctx context.Context, userID string, contentType content.Type, contentID string, source Source) (*AccessGrant, error)

	// HasGrant reports whether a grant exists for the tuple.
	HasGrant(ctx context.Context, userID string, contentType content.Type, contentID string) (bool, error)

	// ListByUser returns all grants held by a user.
	ListByUser(ctx context.Context, userID string) ([]*AccessGrant, error)
}
