package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// WorkflowMatcher selects which approval policy applies to an order.
type WorkflowMatcher struct {
	workflows WorkflowStore
	log       *logger.Logger
}

// NewWorkflowMatcher creates a new WorkflowMatcher.
func NewWorkflowMatcher(workflows WorkflowStore, log *logger.Logger) *WorkflowMatcher {
	return &WorkflowMatcher{workflows: workflows, log: log}
}

// FindMatchingWorkflow returns the first active workflow whose criteria all
// match, evaluated in priority order. Returns (nil, nil) when nothing
// matches: the caller treats that as "no approval required", never as a
// failure of order creation.
func (m *WorkflowMatcher) FindMatchingWorkflow(
	ctx context.Context,
	orderTotal decimal.Decimal,
	paymentType repository.PaymentType,
) (*repository.ApprovalWorkflow, error) {
	workflows, err := m.workflows.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, wf := range workflows {
		if workflowMatches(wf, orderTotal, paymentType) {
			m.log.Debug().
				Str("workflow_id", wf.ID).
				Str("workflow_name", wf.Name).
				Str("order_total", orderTotal.StringFixed(2)).
				Msg("Workflow matched")
			return wf, nil
		}
	}
	return nil, nil
}

// workflowMatches checks a single workflow against the order attributes.
// Both amount bounds are inclusive; a nil bound is unbounded.
func workflowMatches(wf *repository.ApprovalWorkflow, orderTotal decimal.Decimal, paymentType repository.PaymentType) bool {
	if wf.RequiresInstallment && paymentType != repository.PaymentTypeInstallment {
		return false
	}
	if wf.MinOrderAmount != nil && orderTotal.LessThan(*wf.MinOrderAmount) {
		return false
	}
	if wf.MaxOrderAmount != nil && orderTotal.GreaterThan(*wf.MaxOrderAmount) {
		return false
	}
	return true
}
