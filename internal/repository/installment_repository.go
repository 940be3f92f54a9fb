package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// InstallmentRepository handles bi-monthly installment rows. A whole schedule
// is inserted in one transaction.
type InstallmentRepository struct {
	db *database.DB
}

// NewInstallmentRepository creates a new InstallmentRepository.
func NewInstallmentRepository(db *database.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

// CreateBatch inserts an order's full schedule in one transaction.
func (r *InstallmentRepository) CreateBatch(ctx context.Context, installments []*Installment) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO installments (order_id, sequence, cutoff_date, due_date, amount, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`

		for _, inst := range installments {
			err := tx.QueryRow(ctx, query,
				inst.OrderID,
				inst.Sequence,
				inst.CutoffDate,
				inst.DueDate,
				inst.Amount,
				inst.Status,
			).Scan(&inst.ID, &inst.CreatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create installment")
			}
		}
		return nil
	})
}

const installmentColumns = `id, order_id, sequence, cutoff_date, due_date, amount, status, paid_at, created_at`

// ListByOrder returns an order's schedule in sequence order.
func (r *InstallmentRepository) ListByOrder(ctx context.Context, orderID string) ([]*Installment, error) {
	query := `SELECT ` + installmentColumns + `
		FROM installments
		WHERE order_id = $1
		ORDER BY sequence ASC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list installments")
	}
	defer rows.Close()

	var installments []*Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan installment")
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// MarkPaid moves a pending installment to paid and returns the updated row.
// The status guard keeps double payment recording out.
func (r *InstallmentRepository) MarkPaid(ctx context.Context, id string) (*Installment, error) {
	query := `
		UPDATE installments
		SET status  = 'paid',
		    paid_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING ` + installmentColumns

	inst, err := scanInstallment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.AlreadyProcessed(id, "not pending")
	}
	return inst, err
}

func scanInstallment(row rowScanner) (*Installment, error) {
	inst := &Installment{}
	err := row.Scan(
		&inst.ID,
		&inst.OrderID,
		&inst.Sequence,
		&inst.CutoffDate,
		&inst.DueDate,
		&inst.Amount,
		&inst.Status,
		&inst.PaidAt,
		&inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
