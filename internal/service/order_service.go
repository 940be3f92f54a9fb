package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// OrderService orchestrates order creation: number assignment, totals,
// persistence, the ledger transaction, the installment schedule and the
// approval chain.
type OrderService struct {
	orders       OrderStore
	transactions TransactionStore
	numbers      *OrderNumberService
	installments *InstallmentService
	chains       *ApprovalChainService
	log          *logger.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orders OrderStore,
	transactions TransactionStore,
	numbers *OrderNumberService,
	installments *InstallmentService,
	chains *ApprovalChainService,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		orders:       orders,
		transactions: transactions,
		numbers:      numbers,
		installments: installments,
		chains:       chains,
		log:          log,
	}
}

// CreateOrderRequest carries a new order's attributes.
type CreateOrderRequest struct {
	EmployeeID        string
	EmployeeName      string
	PaymentType       repository.PaymentType
	Discount          decimal.Decimal
	Tax               decimal.Decimal
	InstallmentMonths *int
	OrderDate         *time.Time
	Notes             *string
	Items             []*OrderItemRequest
}

// OrderItemRequest is one requested line item.
type OrderItemRequest struct {
	ItemID    string
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrderResult is the created aggregate.
type CreateOrderResult struct {
	Order        *repository.Order
	Transaction  *repository.Transaction
	Installments []*repository.Installment
	Chain        *ChainResult
}

// CreateOrder creates an order in pending_approval, its ledger transaction,
// the installment schedule (installment payment only) and the approval
// chain. An order no workflow matches is created without a chain.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	orderDate := time.Now()
	if req.OrderDate != nil {
		orderDate = *req.OrderDate
	}

	items := make([]*repository.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, line := range req.Items {
		lineSubtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, &repository.OrderItem{
			ItemID:    line.ItemID,
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}
	total := subtotal.Sub(req.Discount).Add(req.Tax)

	order := &repository.Order{
		OrderNumber:          s.numbers.GenerateOrderNumber(ctx, orderDate),
		EmployeeID:           req.EmployeeID,
		EmployeeName:         req.EmployeeName,
		Status:               repository.OrderStatusPendingApproval,
		PaymentType:          req.PaymentType,
		Subtotal:             subtotal,
		Discount:             req.Discount,
		Tax:                  req.Tax,
		Total:                total,
		CurrentApprovalLevel: 1,
		OrderDate:            orderDate,
		Notes:                req.Notes,
		Items:                items,
	}

	if req.PaymentType == repository.PaymentTypeInstallment {
		months := *req.InstallmentMonths
		count := months * 2
		amount := total.DivRound(decimal.NewFromInt(int64(count)), 4).Truncate(2)
		order.InstallmentMonths = &months
		order.InstallmentCount = &count
		order.InstallmentAmount = &amount
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	txn := &repository.Transaction{
		OrderID:     order.ID,
		TotalAmount: total,
		PaidAmount:  decimal.Zero,
		Balance:     total,
		Status:      "unpaid",
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, err
	}

	result := &CreateOrderResult{Order: order, Transaction: txn}

	if req.PaymentType == repository.PaymentTypeInstallment {
		installments, err := s.installments.GenerateInstallments(ctx, order.ID, *req.InstallmentMonths, total, orderDate)
		if err != nil {
			return nil, err
		}
		result.Installments = installments
	}

	chain, err := s.chains.CreateApprovalChain(ctx, &ChainRequest{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		EmployeeID:   order.EmployeeID,
		EmployeeName: order.EmployeeName,
		OrderTotal:   order.Total,
		PaymentType:  order.PaymentType,
		OrderDate:    orderDate,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}
	result.Chain = chain
	if chain != nil {
		order.WorkflowID = &chain.Workflow.ID
	}

	s.log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("total", order.Total.StringFixed(2)).
		Bool("routed", chain != nil).
		Msg("Order created")
	return result, nil
}

// GetOrder returns an order with items.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*repository.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// GetTransaction returns an order's ledger row.
func (s *OrderService) GetTransaction(ctx context.Context, orderID string) (*repository.Transaction, error) {
	return s.transactions.GetByOrderID(ctx, orderID)
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if req.EmployeeID == "" {
		return apperrors.InvalidInput("employee_id", "is required")
	}
	if !req.PaymentType.Valid() {
		return apperrors.InvalidInput("payment_type", "must be cash, installment, points or mixed")
	}
	if len(req.Items) == 0 {
		return apperrors.InvalidInput("items", "at least one line item is required")
	}
	for _, line := range req.Items {
		if line.ItemID == "" {
			return apperrors.InvalidInput("items", "item_id is required")
		}
		if line.Quantity <= 0 {
			return apperrors.InvalidInput("items", "quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return apperrors.InvalidInput("items", "unit_price cannot be negative")
		}
	}
	if req.PaymentType == repository.PaymentTypeInstallment {
		if req.InstallmentMonths == nil || *req.InstallmentMonths <= 0 {
			return apperrors.InvalidInput("installment_months", "must be positive for installment payment")
		}
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return apperrors.InvalidInput("discount", "discount and tax cannot be negative")
	}
	return nil
}
