package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// TransactionRepository handles the payment ledger row created alongside
// each order.
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts the ledger row for a new order.
func (r *TransactionRepository) Create(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO transactions (order_id, total_amount, paid_amount, balance, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		t.OrderID,
		t.TotalAmount,
		t.PaidAmount,
		t.Balance,
		t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create transaction")
	}
	return nil
}

// GetByOrderID retrieves an order's ledger row.
func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	query := `
		SELECT id, order_id, total_amount, paid_amount, balance, status, created_at, updated_at
		FROM transactions
		WHERE order_id = $1
	`

	t := &Transaction{}
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&t.ID,
		&t.OrderID,
		&t.TotalAmount,
		&t.PaidAmount,
		&t.Balance,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("transaction", orderID)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ApplyPayment rolls a payment amount into the ledger in one atomic
// statement: paid_amount grows, balance shrinks, status follows the balance.
func (r *TransactionRepository) ApplyPayment(ctx context.Context, orderID string, amount decimal.Decimal) (*Transaction, error) {
	query := `
		UPDATE transactions
		SET paid_amount = paid_amount + $2,
		    balance     = balance - $2,
		    status      = CASE
		        WHEN balance - $2 <= 0 THEN 'paid'
		        ELSE 'partial'
		    END,
		    updated_at  = NOW()
		WHERE order_id = $1
		RETURNING id, order_id, total_amount, paid_amount, balance, status, created_at, updated_at
	`

	t := &Transaction{}
	err := r.db.QueryRow(ctx, query, orderID, amount).Scan(
		&t.ID,
		&t.OrderID,
		&t.TotalAmount,
		&t.PaidAmount,
		&t.Balance,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("transaction", orderID)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
