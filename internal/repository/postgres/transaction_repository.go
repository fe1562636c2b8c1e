package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	"github.com/aulaviva/checkout/internal/domain/content"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/aulaviva/checkout/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, invoice_id, session_id, amount, currency, gateway,
	        gateway_reference, status, failure_reason, created_at, updated_at`

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new transaction. The unique gateway_reference constraint
// catches concurrent materialization of the same remote charge.
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO transactions
		 (id, invoice_id, session_id, amount, currency, gateway,
		  gateway_reference, status, failure_reason, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		tx.ID, tx.InvoiceID, tx.SessionID,
		centsToNumericString(tx.AmountCents), tx.Currency, string(tx.Gateway),
		nullIfEmpty(tx.GatewayReference), string(tx.Status), tx.FailureReason,
		tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return r.scanOne(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

// GetByInvoiceID retrieves a transaction by its invoice number.
func (r *TransactionRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error) {
	return r.scanOne(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE invoice_id = $1`, invoiceID))
}

// GetByGatewayReference retrieves a transaction by its provider-side identifier.
func (r *TransactionRepository) GetByGatewayReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	return r.scanOne(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE gateway_reference = $1`, reference))
}

// LatestForSession retrieves the most recent transaction of a session.
func (r *TransactionRepository) LatestForSession(ctx context.Context, sessionID uuid.UUID) (*transaction.Transaction, error) {
	return r.scanOne(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, sessionID))
}

// LatestPending retrieves the user's most recent pending transaction,
// optionally scoped to one content item. contentType == "" means any.
func (r *TransactionRepository) LatestPending(ctx context.Context, userID string, contentType content.Type, contentID string) (*transaction.Transaction, error) {
	query := `SELECT t.id, t.invoice_id, t.session_id, t.amount, t.currency, t.gateway,
	        t.gateway_reference, t.status, t.failure_reason, t.created_at, t.updated_at
	 FROM transactions t
	 JOIN checkout_sessions s ON s.id = t.session_id
	 WHERE t.status = 'pending' AND s.user_id = $1`
	args := []any{userID}

	if contentType != "" {
		query += ` AND s.content_type = $2 AND s.content_id = $3`
		args = append(args, string(contentType), contentID)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC LIMIT 1`

	return r.scanOne(r.db(ctx).QueryRow(ctx, query, args...))
}

// Update updates an existing transaction.
func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions SET
		  gateway_reference=$1, status=$2, failure_reason=$3, updated_at=$4
		 WHERE id=$5`,
		nullIfEmpty(tx.GatewayReference), string(tx.Status), tx.FailureReason,
		tx.UpdatedAt, tx.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateReference
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrTransactionNotFound
	}
	return nil
}

// ListPending lists pending transactions, oldest first.
func (r *TransactionRepository) ListPending(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (r *TransactionRepository) scanOne(row scanner) (*transaction.Transaction, error) {
	tx, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) scan(row scanner) (*transaction.Transaction, error) {
	tx := &transaction.Transaction{}
	var (
		amount, gw, status string
		reference          *string
	)

	err := row.Scan(
		&tx.ID, &tx.InvoiceID, &tx.SessionID, &amount, &tx.Currency, &gw,
		&reference, &status, &tx.FailureReason, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	cents, err := numericStringToCents(amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.AmountCents = cents
	tx.Gateway = checkout.GatewayName(gw)
	tx.Status = transaction.Status(status)
	if reference != nil {
		tx.GatewayReference = *reference
	}
	return tx, nil
}
