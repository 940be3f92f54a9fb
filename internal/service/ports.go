package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// Collaborator ports consumed by the services. The pgx repositories in
// internal/repository satisfy the store interfaces; tests substitute
// in-memory fakes.

// OrderStore is the order persistence surface the services need.
type OrderStore interface {
	Create(ctx context.Context, order *repository.Order) error
	GetByID(ctx context.Context, id string) (*repository.Order, error)
	SetWorkflow(ctx context.Context, orderID, workflowID string) error
	SetCurrentLevel(ctx context.Context, orderID string, level int) error
	MarkApproved(ctx context.Context, orderID string) (transitioned bool, err error)
	MarkRejected(ctx context.Context, orderID, rejectedBy string, reason *string) error
	OrderNumbersForDay(ctx context.Context, prefix string) ([]string, error)
	NextDaySequence(ctx context.Context, day string) (int64, error)
}

// WorkflowStore provides approval workflow policies.
type WorkflowStore interface {
	Create(ctx context.Context, wf *repository.ApprovalWorkflow) error
	GetByID(ctx context.Context, id string) (*repository.ApprovalWorkflow, error)
	ListActive(ctx context.Context) ([]*repository.ApprovalWorkflow, error)
}

// ApprovalStore persists per-order approval chains.
type ApprovalStore interface {
	CreateChain(ctx context.Context, approvals []*repository.OrderApproval) error
	GetByID(ctx context.Context, id string) (*repository.OrderApproval, error)
	ListByOrder(ctx context.Context, orderID string) ([]*repository.OrderApproval, error)
	PendingAtLevel(ctx context.Context, orderID string, level int) (*repository.OrderApproval, error)
	CountByStatus(ctx context.Context, orderID string, status repository.ApprovalStatus) (int, error)
	CountByOrder(ctx context.Context, orderID string) (int, error)
	RecordDecision(ctx context.Context, id string, status repository.ApprovalStatus, comments *string) error
	Reopen(ctx context.Context, id string, comment string) error
	PendingForApprover(ctx context.Context, approverID string) ([]*repository.OrderApproval, error)
}

// ItemStore reads and mutates stock-bearing items.
type ItemStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*repository.Item, error)
	DeductStock(ctx context.Context, adjustments []repository.StockAdjustment) (missing []string, err error)
	RestoreStock(ctx context.Context, adjustments []repository.StockAdjustment) (missing []string, err error)
}

// TransactionStore persists the per-order payment ledger.
type TransactionStore interface {
	Create(ctx context.Context, t *repository.Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (*repository.Transaction, error)
	ApplyPayment(ctx context.Context, orderID string, amount decimal.Decimal) (*repository.Transaction, error)
}

// InstallmentStore persists bi-monthly installment schedules.
type InstallmentStore interface {
	CreateBatch(ctx context.Context, installments []*repository.Installment) error
	ListByOrder(ctx context.Context, orderID string) ([]*repository.Installment, error)
	MarkPaid(ctx context.Context, id string) (*repository.Installment, error)
}

// ApproverResolver maps an approval role to a concrete approver. Returns
// (nil, nil) when the role has no directory entry; the level is then created
// unassigned.
type ApproverResolver interface {
	Resolve(ctx context.Context, role string) (*repository.Approver, error)
}

// NotificationResult is the outcome of a delivery attempt. Delivery failures
// are never propagated as errors: callers log the result and move on, so a
// failed email can never block a state transition already committed.
type NotificationResult struct {
	Delivered bool
	Err       error
}

// Notifier emits approval lifecycle notifications, fire-and-forget.
type Notifier interface {
	SendApprovalRequest(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) NotificationResult
	SendNextApprovalNotification(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) NotificationResult
	SendOrderApproved(ctx context.Context, order *repository.Order, approverNames []string) NotificationResult
	SendOrderRejected(ctx context.Context, order *repository.Order, rejectedBy string, reason *string) NotificationResult
}
