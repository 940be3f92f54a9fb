package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// OrderRepository handles order data operations. Order + item creation is
// always done together in a single transaction.
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its line items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *Order) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO orders
			    (order_number, employee_id, employee_name, status, payment_type,
			     subtotal, discount, tax, total,
			     installment_months, installment_count, installment_amount,
			     current_approval_level, order_date, notes)
			VALUES ($1, $2, $3, $4::order_status, $5::payment_type,
			        $6, $7, $8, $9,
			        $10, $11, $12,
			        $13, $14, $15)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			order.OrderNumber,
			order.EmployeeID,
			order.EmployeeName,
			order.Status,
			order.PaymentType,
			order.Subtotal,
			order.Discount,
			order.Tax,
			order.Total,
			order.InstallmentMonths,
			order.InstallmentCount,
			order.InstallmentAmount,
			order.CurrentApprovalLevel,
			order.OrderDate,
			order.Notes,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create order")
		}

		itemQuery := `
			INSERT INTO order_items (order_id, item_id, item_name, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`

		for _, item := range order.Items {
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, itemQuery,
				item.OrderID,
				item.ItemID,
				item.ItemName,
				item.Quantity,
				item.UnitPrice,
				item.Subtotal,
			).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create order item")
			}
		}

		return nil
	})
}

const orderColumns = `
	id, order_number, employee_id, employee_name, status, payment_type,
	subtotal, discount, tax, total,
	installment_months, installment_count, installment_amount,
	workflow_id, current_approval_level, is_fully_approved,
	approved_at, rejected_at, rejected_by, rejection_reason,
	notes, order_date, created_at, updated_at`

// GetByID retrieves an order with all line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// List returns orders for an employee (or all when employeeID is nil), newest
// first. Items are not loaded.
func (r *OrderRepository) List(ctx context.Context, employeeID *string, limit, offset int) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if employeeID != nil {
		query += ` WHERE employee_id = $1`
		args = append(args, *employeeID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list orders")
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan order")
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// SetWorkflow writes workflow_id onto an order once. Subsequent calls are
// no-ops: the link is immutable after the chain is built.
func (r *OrderRepository) SetWorkflow(ctx context.Context, orderID, workflowID string) error {
	query := `
		UPDATE orders
		SET workflow_id = $2,
		    updated_at  = NOW()
		WHERE id = $1
		  AND workflow_id IS NULL
	`

	_, err := r.db.Exec(ctx, query, orderID, workflowID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to set order workflow")
	}
	return err
}

// SetCurrentLevel advances the order's current approval level.
func (r *OrderRepository) SetCurrentLevel(ctx context.Context, orderID string, level int) error {
	query := `
		UPDATE orders
		SET current_approval_level = $2,
		    updated_at             = NOW()
		WHERE id = $1
		RETURNING id
	`

	var id string
	err := r.db.QueryRow(ctx, query, orderID, level).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("order", orderID)
	}
	return err
}

// MarkApproved moves a pending order to approved and stamps approved_at.
// Returns whether this call performed the transition: false means the order
// was already approved (re-entrant completion), which callers treat as a
// no-op so stock is deducted exactly once.
func (r *OrderRepository) MarkApproved(ctx context.Context, orderID string) (bool, error) {
	query := `
		UPDATE orders
		SET status            = 'approved'::order_status,
		    is_fully_approved = TRUE,
		    approved_at       = NOW(),
		    updated_at        = NOW()
		WHERE id = $1
		  AND status = 'pending_approval'::order_status
	`

	tag, err := r.db.Exec(ctx, query, orderID)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeInternal, "failed to approve order")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var status OrderStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperrors.NotFound("order", orderID)
	}
	if err != nil {
		return false, err
	}
	if status == OrderStatusRejected {
		return false, apperrors.New(apperrors.CodeAlreadyProcessed,
			"order "+orderID+" is rejected and cannot be approved")
	}
	return false, nil
}

// MarkRejected moves an order to rejected. Reachable from pending_approval
// and, for the administrative reversal path, from approved.
func (r *OrderRepository) MarkRejected(ctx context.Context, orderID, rejectedBy string, reason *string) error {
	query := `
		UPDATE orders
		SET status            = 'rejected'::order_status,
		    is_fully_approved = FALSE,
		    rejected_at       = NOW(),
		    rejected_by       = $2,
		    rejection_reason  = $3,
		    updated_at        = NOW()
		WHERE id = $1
		  AND status IN ('pending_approval'::order_status, 'approved'::order_status)
		RETURNING id
	`

	var id string
	err := r.db.QueryRow(ctx, query, orderID, rejectedBy, reason).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("order", orderID)
	}
	return err
}

// OrderNumbersForDay returns every order number sharing the given day prefix,
// e.g. "ORD-20260827-". Used by the scan-based number fallback.
func (r *OrderRepository) OrderNumbersForDay(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT order_number
		FROM orders
		WHERE order_number LIKE $1 || '%'
	`

	rows, err := r.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list order numbers")
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan order number")
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// NextDaySequence atomically increments and returns the per-day order
// counter. This is the race-free primary path for number generation.
func (r *OrderRepository) NextDaySequence(ctx context.Context, day string) (int64, error) {
	query := `
		INSERT INTO order_number_counters (day, value)
		VALUES ($1, 1)
		ON CONFLICT (day)
		DO UPDATE SET value = order_number_counters.value + 1
		RETURNING value
	`

	var value int64
	if err := r.db.QueryRow(ctx, query, day).Scan(&value); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to advance order number counter")
	}
	return value, nil
}

func (r *OrderRepository) itemsForOrder(ctx context.Context, orderID string) ([]*OrderItem, error) {
	query := `
		SELECT id, order_id, item_id, item_name, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get order items")
	}
	defer rows.Close()

	var items []*OrderItem
	for rows.Next() {
		item := &OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ItemID,
			&item.ItemName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan order item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	order := &Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.EmployeeID,
		&order.EmployeeName,
		&order.Status,
		&order.PaymentType,
		&order.Subtotal,
		&order.Discount,
		&order.Tax,
		&order.Total,
		&order.InstallmentMonths,
		&order.InstallmentCount,
		&order.InstallmentAmount,
		&order.WorkflowID,
		&order.CurrentApprovalLevel,
		&order.IsFullyApproved,
		&order.ApprovedAt,
		&order.RejectedAt,
		&order.RejectedBy,
		&order.RejectionReason,
		&order.Notes,
		&order.OrderDate,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
