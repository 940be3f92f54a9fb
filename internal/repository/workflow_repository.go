package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// WorkflowRepository handles approval workflow policies and their levels.
// Workflow + level creation is always done together in a single transaction.
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a workflow and its levels in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, wf *ApprovalWorkflow) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO approval_workflows
			    (name, is_active, min_order_amount, max_order_amount,
			     requires_installment, priority)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			wf.Name,
			wf.IsActive,
			wf.MinOrderAmount,
			wf.MaxOrderAmount,
			wf.RequiresInstallment,
			wf.Priority,
		).Scan(&wf.ID, &wf.CreatedAt, &wf.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create approval workflow")
		}

		levelQuery := `
			INSERT INTO workflow_approval_levels
			    (workflow_id, level, role, approver_id, approver_name, approver_email)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`

		for _, level := range wf.Levels {
			level.WorkflowID = wf.ID
			err := tx.QueryRow(ctx, levelQuery,
				level.WorkflowID,
				level.Level,
				level.Role,
				level.ApproverID,
				level.ApproverName,
				level.ApproverEmail,
			).Scan(&level.ID, &level.CreatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create workflow level")
			}
		}

		return nil
	})
}

const workflowColumns = `
	id, name, is_active, min_order_amount, max_order_amount,
	requires_installment, priority, created_at, updated_at`

// GetByID retrieves a workflow with its levels.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*ApprovalWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM approval_workflows WHERE id = $1`

	wf, err := scanWorkflow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval_workflow", id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadLevels(ctx, []*ApprovalWorkflow{wf}); err != nil {
		return nil, err
	}
	return wf, nil
}

// ListActive returns active workflows with levels, in deterministic matching
// order: priority ascending, then creation time, then id.
func (r *WorkflowRepository) ListActive(ctx context.Context) ([]*ApprovalWorkflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM approval_workflows
		WHERE is_active = TRUE
		ORDER BY priority ASC, created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list approval workflows")
	}
	defer rows.Close()

	var workflows []*ApprovalWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approval workflow")
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadLevels(ctx, workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

// loadLevels attaches ordered levels to each workflow.
func (r *WorkflowRepository) loadLevels(ctx context.Context, workflows []*ApprovalWorkflow) error {
	if len(workflows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(workflows))
	byID := make(map[string]*ApprovalWorkflow, len(workflows))
	for _, wf := range workflows {
		ids = append(ids, wf.ID)
		byID[wf.ID] = wf
	}

	query := `
		SELECT id, workflow_id, level, role, approver_id, approver_name, approver_email, created_at
		FROM workflow_approval_levels
		WHERE workflow_id = ANY($1)
		ORDER BY workflow_id, level ASC
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to load workflow levels")
	}
	defer rows.Close()

	for rows.Next() {
		level := &WorkflowApprovalLevel{}
		err := rows.Scan(
			&level.ID,
			&level.WorkflowID,
			&level.Level,
			&level.Role,
			&level.ApproverID,
			&level.ApproverName,
			&level.ApproverEmail,
			&level.CreatedAt,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan workflow level")
		}
		if wf, ok := byID[level.WorkflowID]; ok {
			wf.Levels = append(wf.Levels, level)
		}
	}
	return rows.Err()
}

func scanWorkflow(row rowScanner) (*ApprovalWorkflow, error) {
	wf := &ApprovalWorkflow{}
	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.IsActive,
		&wf.MinOrderAmount,
		&wf.MaxOrderAmount,
		&wf.RequiresInstallment,
		&wf.Priority,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wf, nil
}
