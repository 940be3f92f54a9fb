package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// ItemRepository handles stock-bearing catalog items. Stock mutations use
// atomic single-statement updates and run inside one transaction per order,
// so concurrent approvals cannot lose updates.
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, name, stock_quantity, is_active, is_available, status, created_at, updated_at`

// GetByID retrieves an item by primary key.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("item", id)
	}
	return item, err
}

// GetByIDs returns the items that exist among ids. Missing ids are simply
// absent from the result; callers decide how to treat vanished items.
func (r *ItemRepository) GetByIDs(ctx context.Context, ids []string) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get items")
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// StockAdjustment is one per-item mutation within an order-scoped stock write.
type StockAdjustment struct {
	ItemID   string
	Quantity int
}

// DeductStock subtracts quantities inside one transaction, clamping at zero.
// Returns the item ids that no longer exist (skipped, not an error).
func (r *ItemRepository) DeductStock(ctx context.Context, adjustments []StockAdjustment) ([]string, error) {
	query := `
		UPDATE items
		SET stock_quantity = GREATEST(stock_quantity - $2, 0),
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING id
	`
	return r.adjustStock(ctx, query, adjustments)
}

// RestoreStock adds quantities back inside one transaction. Returns the item
// ids that no longer exist (skipped, not an error).
func (r *ItemRepository) RestoreStock(ctx context.Context, adjustments []StockAdjustment) ([]string, error) {
	query := `
		UPDATE items
		SET stock_quantity = stock_quantity + $2,
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING id
	`
	return r.adjustStock(ctx, query, adjustments)
}

func (r *ItemRepository) adjustStock(ctx context.Context, query string, adjustments []StockAdjustment) ([]string, error) {
	var missing []string
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		for _, adj := range adjustments {
			var id string
			err := tx.QueryRow(ctx, query, adj.ItemID, adj.Quantity).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				missing = append(missing, adj.ItemID)
				continue
			}
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to adjust item stock")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return missing, nil
}

func scanItem(row rowScanner) (*Item, error) {
	item := &Item{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.StockQuantity,
		&item.IsActive,
		&item.IsAvailable,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
