package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// ApprovalRepository handles per-order approval chain rows. Chain creation is
// transactional; decision updates are guarded single-row writes so a
// non-pending approval can never be reprocessed, even under concurrent calls.
type ApprovalRepository struct {
	db *database.DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db *database.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreateChain inserts all approvals of one order in a single transaction.
func (r *ApprovalRepository) CreateChain(ctx context.Context, approvals []*OrderApproval) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO order_approvals
			    (order_id, order_number, approval_level, approver_role,
			     approver_id, approver_name, approver_email, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::approval_status)
			RETURNING id, created_at, updated_at
		`

		for _, a := range approvals {
			err := tx.QueryRow(ctx, query,
				a.OrderID,
				a.OrderNumber,
				a.ApprovalLevel,
				a.ApproverRole,
				a.ApproverID,
				a.ApproverName,
				a.ApproverEmail,
				a.Status,
			).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create order approval")
			}
		}
		return nil
	})
}

const approvalColumns = `
	id, order_id, order_number, approval_level, approver_role,
	approver_id, approver_name, approver_email,
	status, approved_at, rejected_at, comments, created_at, updated_at`

// GetByID retrieves an approval by primary key.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*OrderApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM order_approvals WHERE id = $1`

	a, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order_approval", id)
	}
	return a, err
}

// ListByOrder returns an order's full chain ordered by level.
func (r *ApprovalRepository) ListByOrder(ctx context.Context, orderID string) ([]*OrderApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM order_approvals
		WHERE order_id = $1
		ORDER BY approval_level ASC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list order approvals")
	}
	defer rows.Close()

	return scanApprovalRows(rows)
}

// PendingAtLevel returns the pending approval at the given level of an order,
// or nil when none exists.
func (r *ApprovalRepository) PendingAtLevel(ctx context.Context, orderID string, level int) (*OrderApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM order_approvals
		WHERE order_id = $1
		  AND approval_level = $2
		  AND status = 'pending'::approval_status`

	a, err := scanApproval(r.db.QueryRow(ctx, query, orderID, level))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// CountByStatus counts an order's approvals in the given status.
func (r *ApprovalRepository) CountByStatus(ctx context.Context, orderID string, status ApprovalStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM order_approvals
		WHERE order_id = $1
		  AND status = $2::approval_status
	`

	var count int
	if err := r.db.QueryRow(ctx, query, orderID, status).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count order approvals")
	}
	return count, nil
}

// CountByOrder counts all approval rows for an order. Used as the
// total-required fallback for orders without a linked workflow.
func (r *ApprovalRepository) CountByOrder(ctx context.Context, orderID string) (int, error) {
	query := `SELECT COUNT(*) FROM order_approvals WHERE order_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, orderID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count order approvals")
	}
	return count, nil
}

// RecordDecision moves a pending approval to its terminal status and stamps
// the matching timestamp. The status guard loses gracefully under races: when
// another call already decided this approval, AlreadyProcessed is returned.
func (r *ApprovalRepository) RecordDecision(ctx context.Context, id string, status ApprovalStatus, comments *string) error {
	query := `
		UPDATE order_approvals
		SET status      = $2::approval_status,
		    approved_at = CASE WHEN $2 = 'approved' THEN NOW() ELSE approved_at END,
		    rejected_at = CASE WHEN $2 = 'rejected' THEN NOW() ELSE rejected_at END,
		    comments    = COALESCE($3, comments),
		    updated_at  = NOW()
		WHERE id = $1
		  AND status = 'pending'::approval_status
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, comments).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.AlreadyProcessed(id, "not pending")
	}
	return err
}

// Reopen reverts an approved approval back to pending with an explanatory
// comment. Used when stock validation fails after the final approval: the
// approval is reopened, not dropped, so the caller can retry after restocking.
func (r *ApprovalRepository) Reopen(ctx context.Context, id string, comment string) error {
	query := `
		UPDATE order_approvals
		SET status      = 'pending'::approval_status,
		    approved_at = NULL,
		    comments    = $2,
		    updated_at  = NOW()
		WHERE id = $1
		  AND status = 'approved'::approval_status
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, comment).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("order_approval", id)
	}
	return err
}

// PendingForApprover returns the pending approvals a user can act on right
// now: only the order's current level is actionable (strictly sequential).
func (r *ApprovalRepository) PendingForApprover(ctx context.Context, approverID string) ([]*OrderApproval, error) {
	query := `
		SELECT a.id, a.order_id, a.order_number, a.approval_level, a.approver_role,
		       a.approver_id, a.approver_name, a.approver_email,
		       a.status, a.approved_at, a.rejected_at, a.comments, a.created_at, a.updated_at
		FROM order_approvals a
		JOIN orders o ON o.id = a.order_id
		WHERE a.approver_id = $1
		  AND a.status = 'pending'::approval_status
		  AND o.status = 'pending_approval'::order_status
		  AND a.approval_level = o.current_approval_level
		ORDER BY a.created_at ASC
	`

	rows, err := r.db.Query(ctx, query, approverID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list pending approvals")
	}
	defer rows.Close()

	return scanApprovalRows(rows)
}

// ── scan helpers ─────────────────────────────────────────────────────────────

func scanApproval(row rowScanner) (*OrderApproval, error) {
	a := &OrderApproval{}
	err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.OrderNumber,
		&a.ApprovalLevel,
		&a.ApproverRole,
		&a.ApproverID,
		&a.ApproverName,
		&a.ApproverEmail,
		&a.Status,
		&a.ApprovedAt,
		&a.RejectedAt,
		&a.Comments,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanApprovalRows(rows pgx.Rows) ([]*OrderApproval, error) {
	var approvals []*OrderApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan order approval")
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
