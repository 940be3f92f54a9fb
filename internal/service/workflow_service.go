package service

import (
	"context"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// WorkflowService administers approval workflow policies. Workflows are
// treated as immutable once orders reference them, so only create and list
// are exposed.
type WorkflowService struct {
	workflows WorkflowStore
	log       *logger.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(workflows WorkflowStore, log *logger.Logger) *WorkflowService {
	return &WorkflowService{workflows: workflows, log: log}
}

// CreateWorkflow validates and persists a workflow with its levels. Levels
// must be dense 1..n in ascending order.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, wf *repository.ApprovalWorkflow) error {
	if wf.Name == "" {
		return apperrors.InvalidInput("name", "is required")
	}
	if len(wf.Levels) == 0 {
		return apperrors.InvalidInput("levels", "at least one approval level is required")
	}
	for i, level := range wf.Levels {
		if level.Level != i+1 {
			return apperrors.InvalidInput("levels", "level numbers must be dense 1..n in order")
		}
		if level.Role == "" {
			return apperrors.InvalidInput("levels", "role is required on every level")
		}
	}
	if wf.MinOrderAmount != nil && wf.MaxOrderAmount != nil &&
		wf.MinOrderAmount.GreaterThan(*wf.MaxOrderAmount) {
		return apperrors.InvalidInput("min_order_amount", "cannot exceed max_order_amount")
	}

	if err := s.workflows.Create(ctx, wf); err != nil {
		return err
	}

	s.log.Info().
		Str("workflow_id", wf.ID).
		Str("name", wf.Name).
		Int("levels", len(wf.Levels)).
		Msg("Approval workflow created")
	return nil
}

// ListActive returns active workflows in matching order.
func (s *WorkflowService) ListActive(ctx context.Context) ([]*repository.ApprovalWorkflow, error) {
	return s.workflows.ListActive(ctx)
}

// GetWorkflow returns a workflow with levels.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*repository.ApprovalWorkflow, error) {
	return s.workflows.GetByID(ctx, id)
}
