package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/database"
)

// RoleDirectoryRepository resolves approval roles to concrete approvers. It
// backs the chain builder's fallback when a workflow level carries no
// explicit approver.
type RoleDirectoryRepository struct {
	db *database.DB
}

// NewRoleDirectoryRepository creates a new RoleDirectoryRepository.
func NewRoleDirectoryRepository(db *database.DB) *RoleDirectoryRepository {
	return &RoleDirectoryRepository{db: db}
}

// Resolve returns the first active approver registered for a role, or nil
// when the role has no directory entry.
func (r *RoleDirectoryRepository) Resolve(ctx context.Context, role string) (*Approver, error) {
	query := `
		SELECT approver_id, approver_name, approver_email
		FROM role_approvers
		WHERE role = $1
		  AND is_active = TRUE
		ORDER BY created_at ASC
		LIMIT 1
	`

	a := &Approver{}
	err := r.db.QueryRow(ctx, query, role).Scan(&a.ID, &a.Name, &a.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to resolve role approver")
	}
	return a, nil
}

// Register adds or reactivates a role → approver mapping.
func (r *RoleDirectoryRepository) Register(ctx context.Context, role string, approver *Approver) error {
	query := `
		INSERT INTO role_approvers (role, approver_id, approver_name, approver_email, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (role, approver_id)
		DO UPDATE SET approver_name  = EXCLUDED.approver_name,
		              approver_email = EXCLUDED.approver_email,
		              is_active      = TRUE
	`

	if _, err := r.db.Exec(ctx, query, role, approver.ID, approver.Name, approver.Email); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to register role approver")
	}
	return nil
}
