package service

import (
	"context"
	"fmt"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// ApprovalService is the state machine that advances or terminates an
// order's approval lifecycle. Per-approval transitions are pending →
// {approved, rejected}, one-way; per-order transitions are pending_approval
// → {approved, rejected}. Stock mutation and notifications happen here as
// side effects of the terminal transitions.
type ApprovalService struct {
	approvals ApprovalStore
	orders    OrderStore
	workflows WorkflowStore
	stock     *StockService
	notifier  Notifier
	log       *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	approvals ApprovalStore,
	orders OrderStore,
	workflows WorkflowStore,
	stock *StockService,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		approvals: approvals,
		orders:    orders,
		workflows: workflows,
		stock:     stock,
		notifier:  notifier,
		log:       log,
	}
}

// ProcessResult reports the state after one approval decision.
type ProcessResult struct {
	Approval *repository.OrderApproval
	Order    *repository.Order
	// Completed is true when this decision brought the order to a terminal
	// status (approved or rejected).
	Completed bool
}

// ProcessApproval applies one approver's decision to an approval row.
//
// Fails with AlreadyProcessed when the approval is not pending. On rejection
// the order terminates immediately; stock is restored first if the order had
// already reached approved (administrative reversal). On approval the chain
// either completes (stock validated then deducted, order approved) or
// advances to the next pending level. Insufficient stock at completion
// reopens this approval to pending and surfaces the shortage detail.
func (s *ApprovalService) ProcessApproval(
	ctx context.Context,
	approvalID string,
	decision repository.ApprovalStatus,
	comments *string,
) (*ProcessResult, error) {
	if decision != repository.ApprovalStatusApproved && decision != repository.ApprovalStatusRejected {
		return nil, apperrors.InvalidInput("decision", "must be approved or rejected")
	}

	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if !approval.Status.CanTransition(decision) {
		return nil, apperrors.AlreadyProcessed(approvalID, string(approval.Status))
	}

	order, err := s.orders.GetByID(ctx, approval.OrderID)
	if err != nil {
		return nil, err
	}

	// Guarded write: loses cleanly if a concurrent call decided this row first.
	if err := s.approvals.RecordDecision(ctx, approvalID, decision, comments); err != nil {
		return nil, err
	}
	approval.Status = decision
	approval.Comments = comments

	if decision == repository.ApprovalStatusRejected {
		return s.reject(ctx, approval, order)
	}
	return s.approve(ctx, approval, order)
}

// reject terminates the order. When the order had already been approved the
// deducted stock is restored before the flip; still-pending sibling
// approvals are deliberately left pending.
func (s *ApprovalService) reject(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) (*ProcessResult, error) {
	if order.Status == repository.OrderStatusApproved {
		s.log.Info().
			Str("order_id", order.ID).
			Str("approval_id", approval.ID).
			Msg("Rejecting an already-approved order; restoring stock")
		if err := s.stock.RestoreStockForOrder(ctx, order); err != nil {
			return nil, err
		}
	}

	rejectedBy := approverNameOf(approval)
	if err := s.orders.MarkRejected(ctx, order.ID, rejectedBy, approval.Comments); err != nil {
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("approval_level", approval.ApprovalLevel).
		Str("rejected_by", rejectedBy).
		Msg("Order rejected")

	if res := s.notifier.SendOrderRejected(ctx, updated, rejectedBy, approval.Comments); res.Err != nil {
		s.log.Warn().Err(res.Err).
			Str("order_id", order.ID).
			Msg("Failed to send rejection notification")
	}

	return &ProcessResult{Approval: approval, Order: updated, Completed: true}, nil
}

// approve either completes the chain or advances it one level.
func (s *ApprovalService) approve(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) (*ProcessResult, error) {
	required, err := s.totalRequiredLevels(ctx, order)
	if err != nil {
		return nil, err
	}

	approvedCount, err := s.approvals.CountByStatus(ctx, order.ID, repository.ApprovalStatusApproved)
	if err != nil {
		return nil, err
	}

	if approvedCount >= required {
		return s.complete(ctx, approval, order)
	}
	return s.advance(ctx, approval, order)
}

// complete runs the terminal approval path: stock validation, order flip,
// stock deduction, notifications. Insufficient stock reopens this approval
// rather than dropping it, so the decision can be retried after restocking.
func (s *ApprovalService) complete(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) (*ProcessResult, error) {
	shortages, err := s.stock.ValidateItems(ctx, order.Items)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		comment := fmt.Sprintf("approval reopened: insufficient stock for %d item(s)", len(shortages))
		if err := s.approvals.Reopen(ctx, approval.ID, comment); err != nil {
			return nil, err
		}
		approval.Status = repository.ApprovalStatusPending

		s.log.Warn().
			Str("order_id", order.ID).
			Str("approval_id", approval.ID).
			Int("short_items", len(shortages)).
			Msg("Final approval blocked by insufficient stock; approval reopened")
		return nil, apperrors.InsufficientStock(shortages)
	}

	transitioned, err := s.orders.MarkApproved(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	// Deduct only on the actual transition: re-entrant completion must not
	// deduct twice.
	if transitioned {
		if err := s.stock.DeductStockForOrder(ctx, order); err != nil {
			return nil, err
		}
	}

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	chain, err := s.approvals.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(chain))
	for _, a := range chain {
		names = append(names, approverNameOf(a))
	}

	s.log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("levels", len(chain)).
		Msg("Order fully approved")

	if res := s.notifier.SendOrderApproved(ctx, updated, names); res.Err != nil {
		s.log.Warn().Err(res.Err).
			Str("order_id", order.ID).
			Msg("Failed to send approval notification")
	}

	return &ProcessResult{Approval: approval, Order: updated, Completed: true}, nil
}

// advance moves the chain to the next pending level and notifies its
// approver. A missing next level on an incomplete chain indicates
// out-of-order processing; it is logged and left alone.
func (s *ApprovalService) advance(ctx context.Context, approval *repository.OrderApproval, order *repository.Order) (*ProcessResult, error) {
	next, err := s.approvals.PendingAtLevel(ctx, order.ID, approval.ApprovalLevel+1)
	if err != nil {
		return nil, err
	}
	if next == nil {
		s.log.Warn().
			Str("order_id", order.ID).
			Int("approval_level", approval.ApprovalLevel).
			Msg("Approval chain stalled: no pending approval at next level")
		updated, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return &ProcessResult{Approval: approval, Order: updated}, nil
	}

	if err := s.orders.SetCurrentLevel(ctx, order.ID, next.ApprovalLevel); err != nil {
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", order.ID).
		Int("from_level", approval.ApprovalLevel).
		Int("to_level", next.ApprovalLevel).
		Msg("Approval chain advanced")

	if res := s.notifier.SendNextApprovalNotification(ctx, next, updated); res.Err != nil {
		s.log.Warn().Err(res.Err).
			Str("order_id", order.ID).
			Int("approval_level", next.ApprovalLevel).
			Msg("Failed to notify next approver")
	}

	return &ProcessResult{Approval: approval, Order: updated}, nil
}

// totalRequiredLevels is the workflow's level count when a workflow is
// linked; otherwise the number of approval rows that exist for the order
// (defensive path for orders whose workflow vanished or was never matched).
func (s *ApprovalService) totalRequiredLevels(ctx context.Context, order *repository.Order) (int, error) {
	if order.WorkflowID != nil {
		wf, err := s.workflows.GetByID(ctx, *order.WorkflowID)
		if err == nil {
			return len(wf.Levels), nil
		}
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return 0, err
		}
		s.log.Warn().
			Str("order_id", order.ID).
			Str("workflow_id", *order.WorkflowID).
			Msg("Order's workflow no longer exists; falling back to approval row count")
	}
	return s.approvals.CountByOrder(ctx, order.ID)
}

// ListChain returns an order's approval chain in level order.
func (s *ApprovalService) ListChain(ctx context.Context, orderID string) ([]*repository.OrderApproval, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.approvals.ListByOrder(ctx, orderID)
}

// PendingForApprover returns the approvals a user can act on right now.
func (s *ApprovalService) PendingForApprover(ctx context.Context, approverID string) ([]*repository.OrderApproval, error) {
	return s.approvals.PendingForApprover(ctx, approverID)
}

func approverNameOf(a *repository.OrderApproval) string {
	if a.ApproverName != nil && *a.ApproverName != "" {
		return *a.ApproverName
	}
	return a.ApproverRole
}
