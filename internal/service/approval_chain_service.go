package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// ApprovalChainService instantiates per-order approval chains from a matched
// workflow and kicks off the sequential approval flow.
type ApprovalChainService struct {
	matcher   *WorkflowMatcher
	approvals ApprovalStore
	orders    OrderStore
	resolver  ApproverResolver
	notifier  Notifier
	log       *logger.Logger
}

// NewApprovalChainService creates a new ApprovalChainService.
func NewApprovalChainService(
	matcher *WorkflowMatcher,
	approvals ApprovalStore,
	orders OrderStore,
	resolver ApproverResolver,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalChainService {
	return &ApprovalChainService{
		matcher:   matcher,
		approvals: approvals,
		orders:    orders,
		resolver:  resolver,
		notifier:  notifier,
		log:       log,
	}
}

// ChainRequest carries the order attributes the chain builder needs.
type ChainRequest struct {
	OrderID      string
	OrderNumber  string
	EmployeeID   string
	EmployeeName string
	OrderTotal   decimal.Decimal
	PaymentType  repository.PaymentType
	OrderDate    time.Time
	Notes        *string
}

// ChainResult is the matched workflow plus the created approval rows.
type ChainResult struct {
	Workflow  *repository.ApprovalWorkflow
	Approvals []*repository.OrderApproval
}

// CreateApprovalChain matches a workflow and creates one pending approval per
// level (dense 1..n). Returns (nil, nil) when no workflow matches or the
// matched workflow has no levels: the order then needs no approval.
//
// Only the first level's approver is notified here; later approvers are
// notified by the approval processor as the chain advances. A failed
// notification never rolls back the persisted chain.
func (s *ApprovalChainService) CreateApprovalChain(ctx context.Context, req *ChainRequest) (*ChainResult, error) {
	wf, err := s.matcher.FindMatchingWorkflow(ctx, req.OrderTotal, req.PaymentType)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		s.log.Info().
			Str("order_id", req.OrderID).
			Str("order_total", req.OrderTotal.StringFixed(2)).
			Msg("No approval workflow matched; order is unrouted")
		return nil, nil
	}
	if len(wf.Levels) == 0 {
		s.log.Warn().
			Str("order_id", req.OrderID).
			Str("workflow_id", wf.ID).
			Msg("Matched workflow has no levels; skipping approval chain")
		return nil, nil
	}

	approvals := make([]*repository.OrderApproval, 0, len(wf.Levels))
	for _, level := range wf.Levels {
		approval := &repository.OrderApproval{
			OrderID:       req.OrderID,
			OrderNumber:   req.OrderNumber,
			ApprovalLevel: level.Level,
			ApproverRole:  level.Role,
			Status:        repository.ApprovalStatusPending,
		}

		s.assignApprover(ctx, approval, level)
		approvals = append(approvals, approval)
	}

	if err := s.approvals.CreateChain(ctx, approvals); err != nil {
		return nil, err
	}

	// One-time, immutable link from the order to its policy.
	if err := s.orders.SetWorkflow(ctx, req.OrderID, wf.ID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", req.OrderID).
		Str("workflow_id", wf.ID).
		Int("levels", len(approvals)).
		Msg("Approval chain created")

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if res := s.notifier.SendApprovalRequest(ctx, approvals[0], order); res.Err != nil {
		s.log.Warn().Err(res.Err).
			Str("order_id", req.OrderID).
			Int("approval_level", approvals[0].ApprovalLevel).
			Msg("Failed to notify first approver")
	}

	return &ChainResult{Workflow: wf, Approvals: approvals}, nil
}

// assignApprover resolves who acts on a level: the workflow level's explicit
// approver wins; otherwise the role directory decides. An unresolvable role
// leaves the row unassigned with only the role set.
func (s *ApprovalChainService) assignApprover(ctx context.Context, approval *repository.OrderApproval, level *repository.WorkflowApprovalLevel) {
	if level.ApproverEmail != nil && *level.ApproverEmail != "" {
		approval.ApproverID = level.ApproverID
		approval.ApproverName = level.ApproverName
		approval.ApproverEmail = level.ApproverEmail
		return
	}

	approver, err := s.resolver.Resolve(ctx, level.Role)
	if err != nil {
		s.log.Warn().Err(err).
			Str("role", level.Role).
			Int("level", level.Level).
			Msg("Could not resolve approver for role; level will be unassigned")
		return
	}
	if approver == nil {
		s.log.Warn().
			Str("role", level.Role).
			Int("level", level.Level).
			Msg("No approver registered for role; level will be unassigned")
		return
	}

	approval.ApproverID = &approver.ID
	approval.ApproverName = &approver.Name
	approval.ApproverEmail = &approver.Email
}
