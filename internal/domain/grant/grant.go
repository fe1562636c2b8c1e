package grant

import (
	"time"

	"github.com/aulaviva/checkout/internal/domain/content"
	"github.com/aulaviva/checkout/internal/domain/errors"
)

// Source records how an access grant was obtained.
type Source string

const (
	SourceFree  Source = "free"
	SourcePaid  Source = "paid"
	SourceAdmin Source = "admin"
)

// AccessGrant is the authoritative record that a user may access a content
// item. At most one grant exists per (user, content type, content id) tuple.
// Grants are never mutated; revocation is an explicit delete elsewhere.
type AccessGrant struct {
	UserID      string
	ContentType content.Type
	ContentID   string
	Source      Source
	GrantedAt   time.Time
}

// New creates an access grant for the given tuple.
func New(userID string, contentType content.Type, contentID string, source Source) (*AccessGrant, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user_id", "cannot be empty")
	}
	if contentID == "" {
		return nil, errors.NewValidationError("content_id", "cannot be empty")
	}
	switch source {
	case SourceFree, SourcePaid, SourceAdmin:
	default:
		return nil, errors.NewValidationError("source", "must be free, paid or admin")
	}
	return &AccessGrant{
		UserID:      userID,
		ContentType: contentType,
		ContentID:   contentID,
		Source:      source,
		GrantedAt:   time.Now(),
	}, nil
}
