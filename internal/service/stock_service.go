package service

import (
	"context"

	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// StockService is the stock ledger: it validates and mutates per-item
// inventory counts in response to order approval and rejection. Deduction
// happens at most once per order (guarded by the approved transition) and
// restoration at most once (guarded by the was-approved check in the
// approval processor).
type StockService struct {
	items  ItemStore
	orders OrderStore
	log    *logger.Logger
}

// NewStockService creates a new StockService.
func NewStockService(items ItemStore, orders OrderStore, log *logger.Logger) *StockService {
	return &StockService{items: items, orders: orders, log: log}
}

// StockShortage describes one line item that cannot be satisfied.
type StockShortage struct {
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Shortage  int    `json:"shortage"`
}

// ValidateStockForOrder returns the insufficient line items of an order
// without mutating anything. An empty result means the order can be approved.
func (s *StockService) ValidateStockForOrder(ctx context.Context, orderID string) ([]StockShortage, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.ValidateItems(ctx, order.Items)
}

// ValidateItems checks the given line items against current stock. Items that
// no longer exist are skipped with a warning: a vanished product must not
// block approval or rejection of the order. Items that are no longer
// sellable count as fully short.
func (s *StockService) ValidateItems(ctx context.Context, lines []*repository.OrderItem) ([]StockShortage, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}

	items, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*repository.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	var shortages []StockShortage
	for _, line := range lines {
		item, ok := byID[line.ItemID]
		if !ok {
			s.log.Warn().
				Str("item_id", line.ItemID).
				Str("order_id", line.OrderID).
				Msg("Order references a deleted item; skipping stock check for it")
			continue
		}

		available := item.StockQuantity
		if !item.Sellable() {
			available = 0
		}
		if available < line.Quantity {
			shortages = append(shortages, StockShortage{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Requested: line.Quantity,
				Available: available,
				Shortage:  line.Quantity - available,
			})
		}
	}
	return shortages, nil
}

// DeductStockForOrder subtracts each line item's quantity from stock,
// clamping at zero. Missing items are skipped with a warning.
func (s *StockService) DeductStockForOrder(ctx context.Context, order *repository.Order) error {
	missing, err := s.items.DeductStock(ctx, adjustmentsFor(order))
	if err != nil {
		return err
	}
	s.logMissing(order.ID, missing, "deduct")
	s.log.Info().
		Str("order_id", order.ID).
		Int("items", len(order.Items)).
		Msg("Stock deducted for order")
	return nil
}

// RestoreStockForOrder adds each line item's quantity back to stock. Used
// when a previously approved order is rejected. Missing items are skipped
// with a warning.
func (s *StockService) RestoreStockForOrder(ctx context.Context, order *repository.Order) error {
	missing, err := s.items.RestoreStock(ctx, adjustmentsFor(order))
	if err != nil {
		return err
	}
	s.logMissing(order.ID, missing, "restore")
	s.log.Info().
		Str("order_id", order.ID).
		Int("items", len(order.Items)).
		Msg("Stock restored for order")
	return nil
}

func (s *StockService) logMissing(orderID string, missing []string, op string) {
	for _, id := range missing {
		s.log.Warn().
			Str("item_id", id).
			Str("order_id", orderID).
			Str("operation", op).
			Msg("Order references a deleted item; stock mutation skipped for it")
	}
}

func adjustmentsFor(order *repository.Order) []repository.StockAdjustment {
	adjustments := make([]repository.StockAdjustment, 0, len(order.Items))
	for _, line := range order.Items {
		adjustments = append(adjustments, repository.StockAdjustment{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}
	return adjustments
}
