package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Order domain types ───────────────────────────────────────────────────────

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPendingApproval OrderStatus = "pending_approval"
	OrderStatusApproved        OrderStatus = "approved"
	OrderStatusRejected        OrderStatus = "rejected"
)

// orderTransitions is the legal transition set. Approved and rejected are
// terminal for normal processing; approved → rejected is reachable only
// through the administrative reversal path in the approval processor.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingApproval: {OrderStatusApproved, OrderStatusRejected},
	OrderStatusApproved:        {OrderStatusRejected},
	OrderStatusRejected:        {},
}

// CanTransition reports whether s → to is a legal order transition.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are expected from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusRejected
}

// PaymentType describes how an order is paid.
type PaymentType string

const (
	PaymentTypeCash        PaymentType = "cash"
	PaymentTypeInstallment PaymentType = "installment"
	PaymentTypePoints      PaymentType = "points"
	PaymentTypeMixed       PaymentType = "mixed"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentTypeCash, PaymentTypeInstallment, PaymentTypePoints, PaymentTypeMixed:
		return true
	}
	return false
}

// Order is a purchase order header with embedded line items.
type Order struct {
	ID                   string
	OrderNumber          string
	EmployeeID           string
	EmployeeName         string
	Status               OrderStatus
	PaymentType          PaymentType
	Subtotal             decimal.Decimal
	Discount             decimal.Decimal
	Tax                  decimal.Decimal
	Total                decimal.Decimal
	InstallmentMonths    *int
	InstallmentCount     *int
	InstallmentAmount    *decimal.Decimal
	WorkflowID           *string
	CurrentApprovalLevel int
	IsFullyApproved      bool
	ApprovedAt           *time.Time
	RejectedAt           *time.Time
	RejectedBy           *string
	RejectionReason      *string
	Notes                *string
	OrderDate            time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Items                []*OrderItem
}

// OrderItem is one embedded line item of an order.
type OrderItem struct {
	ID        string
	OrderID   string
	ItemID    string
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	CreatedAt time.Time
}

// Item is a stock-bearing catalog item. Stock is mutated only by the stock
// ledger, at most once per order per direction.
type Item struct {
	ID            string
	Name          string
	StockQuantity int
	IsActive      bool
	IsAvailable   bool
	Status        string // active | discontinued | out_of_stock
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sellable reports whether the item can satisfy new orders at all.
func (i *Item) Sellable() bool {
	return i.IsActive && i.IsAvailable && i.Status != "discontinued"
}

// Transaction is the payment ledger row created alongside an order.
type Transaction struct {
	ID          string
	OrderID     string
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	Balance     decimal.Decimal
	Status      string // unpaid | partial | paid
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Installment is one bi-monthly payment slice of an order total.
type Installment struct {
	ID         string
	OrderID    string
	Sequence   int
	CutoffDate time.Time
	DueDate    time.Time
	Amount     decimal.Decimal
	Status     string // pending | paid
	PaidAt     *time.Time
	CreatedAt  time.Time
}
