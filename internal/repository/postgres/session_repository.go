package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, user_id, content_type, content_id, price, currency, title,
	        payment_method_kind, gateway, status, method_display, last_error,
	        created_at, updated_at, completed_at`

// SessionRepository implements checkout.Repository using PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *checkout.Session) error {
	display, err := json.Marshal(s.MethodDisplay)
	if err != nil {
		return fmt.Errorf("marshal method display: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO checkout_sessions
		 (id, user_id, content_type, content_id, price, currency, title,
		  payment_method_kind, gateway, status, method_display, last_error,
		  created_at, updated_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		s.ID, s.UserID, string(s.Content.Type), s.Content.ID,
		centsToNumericString(s.Content.PriceCents), s.Content.Currency, s.Content.Title,
		nullIfEmpty(string(s.MethodKind)), nullIfEmpty(string(s.Gateway)), string(s.Status),
		display, s.LastError, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	s, err := r.scanSession(r.db(ctx).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// Update updates an existing session.
func (r *SessionRepository) Update(ctx context.Context, s *checkout.Session) error {
	display, err := json.Marshal(s.MethodDisplay)
	if err != nil {
		return fmt.Errorf("marshal method display: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE checkout_sessions SET
		  payment_method_kind=$1, gateway=$2, status=$3, method_display=$4,
		  last_error=$5, updated_at=$6, completed_at=$7
		 WHERE id=$8`,
		nullIfEmpty(string(s.MethodKind)), nullIfEmpty(string(s.Gateway)), string(s.Status),
		display, s.LastError, s.UpdatedAt, s.CompletedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSessionNotFound
	}
	return nil
}

// ListByUser lists sessions for a user, newest first, optionally filtered by status.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, status *checkout.Status, limit, offset int) ([]*checkout.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*status))
		argIdx++
	}

	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	return r.querySessions(ctx, query, args...)
}

// ListAwaitingSince lists sessions stuck awaiting external confirmation that
// were last updated before the cutoff, oldest first.
func (r *SessionRepository) ListAwaitingSince(ctx context.Context, cutoff time.Time, limit int) ([]*checkout.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM checkout_sessions
		 WHERE status = $1 AND updated_at < $2
		 ORDER BY updated_at ASC
		 LIMIT $3`,
		string(checkout.StatusAwaitingExternal), cutoff, limit,
	)
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]*checkout.Session, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*checkout.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) scanSession(row scanner) (*checkout.Session, error) {
	s := &checkout.Session{}
	var (
		contentType, status string
		price               string
		methodKind, gateway *string
		display             []byte
	)

	err := row.Scan(
		&s.ID, &s.UserID, &contentType, &s.Content.ID, &price, &s.Content.Currency,
		&s.Content.Title, &methodKind, &gateway, &status, &display, &s.LastError,
		&s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}

	s.Content.Type = content.Type(contentType)
	cents, err := numericStringToCents(price)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.Content.PriceCents = cents

	if methodKind != nil {
		s.MethodKind = checkout.MethodKind(*methodKind)
	}
	if gateway != nil {
		s.Gateway = checkout.GatewayName(*gateway)
	}
	s.Status = checkout.Status(status)

	s.MethodDisplay = make(map[string]string)
	if len(display) > 0 {
		if err := json.Unmarshal(display, &s.MethodDisplay); err != nil {
			return nil, fmt.Errorf("unmarshal method display: %w", err)
		}
	}
	return s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
