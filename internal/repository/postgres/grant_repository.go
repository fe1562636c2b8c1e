package postgres

import (
	"context"
	"fmt"

	"github.com/aulaviva/checkout/internal/domain/content"
	"github.com/aulaviva/checkout/internal/domain/grant"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepository implements grant.Store using PostgreSQL. The unique
// (user_id, content_type, content_id) constraint is the serialization point
// for concurrent grant attempts.
type GrantRepository struct {
	pool *pgxpool.Pool
}

// NewGrantRepository creates a new GrantRepository.
func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{pool: pool}
}

func (r *GrantRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// GrantIfAbsent inserts the grant unless one exists for the tuple. The insert
// races on the unique constraint; whoever loses re-reads the winner's row, so
// every caller observes the same grant.
func (r *GrantRepository) GrantIfAbsent(ctx context.Context, userID string, contentType content.Type, contentID string, source grant.Source) (*grant.AccessGrant, error) {
	g, err := grant.New(userID, contentType, contentID, source)
	if err != nil {
		return nil, err
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO access_grants (user_id, content_type, content_id, source, granted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, content_type, content_id) DO NOTHING`,
		g.UserID, string(g.ContentType), g.ContentID, string(g.Source), g.GrantedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert access grant: %w", err)
	}

	stored := &grant.AccessGrant{}
	var ct, src string
	err = r.db(ctx).QueryRow(ctx,
		`SELECT user_id, content_type, content_id, source, granted_at
		 FROM access_grants
		 WHERE user_id = $1 AND content_type = $2 AND content_id = $3`,
		userID, string(contentType), contentID,
	).Scan(&stored.UserID, &ct, &stored.ContentID, &src, &stored.GrantedAt)
	if err != nil {
		return nil, fmt.Errorf("read access grant: %w", err)
	}
	stored.ContentType = content.Type(ct)
	stored.Source = grant.Source(src)
	return stored, nil
}

// HasGrant reports whether a grant exists for the tuple.
func (r *GrantRepository) HasGrant(ctx context.Context, userID string, contentType content.Type, contentID string) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM access_grants
		   WHERE user_id = $1 AND content_type = $2 AND content_id = $3
		 )`,
		userID, string(contentType), contentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check access grant: %w", err)
	}
	return exists, nil
}

// ListByUser returns all grants held by a user, newest first.
func (r *GrantRepository) ListByUser(ctx context.Context, userID string) ([]*grant.AccessGrant, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT user_id, content_type, content_id, source, granted_at
		 FROM access_grants WHERE user_id = $1
		 ORDER BY granted_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	var grants []*grant.AccessGrant
	for rows.Next() {
		g := &grant.AccessGrant{}
		var ct, src string
		if err := rows.Scan(&g.UserID, &ct, &g.ContentID, &src, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		g.ContentType = content.Type(ct)
		g.Source = grant.Source(src)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
