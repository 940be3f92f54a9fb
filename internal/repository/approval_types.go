package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Approval domain types ────────────────────────────────────────────────────

// ApprovalStatus is the per-level approval state. The pending → terminal
// transition is one-way: a non-pending approval can never be reprocessed.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalStatusPending: {ApprovalStatusApproved, ApprovalStatusRejected},
	// approved → pending exists only for the insufficient-stock reopen path.
	ApprovalStatusApproved: {ApprovalStatusPending},
	ApprovalStatusRejected: {},
}

// CanTransition reports whether s → to is a legal approval transition.
func (s ApprovalStatus) CanTransition(to ApprovalStatus) bool {
	for _, next := range approvalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ApprovalWorkflow is a configurable approval policy. It is referenced by
// orders by id and treated as immutable once referenced.
type ApprovalWorkflow struct {
	ID                  string
	Name                string
	IsActive            bool
	MinOrderAmount      *decimal.Decimal // nil = no lower bound
	MaxOrderAmount      *decimal.Decimal // nil = no upper bound
	RequiresInstallment bool
	Priority            int // lower = evaluated first
	Levels              []*WorkflowApprovalLevel
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// WorkflowApprovalLevel is one stage of a workflow, bound to a role and
// optionally to an explicit approver.
type WorkflowApprovalLevel struct {
	ID            string
	WorkflowID    string
	Level         int
	Role          string
	ApproverID    *string
	ApproverName  *string
	ApproverEmail *string
	CreatedAt     time.Time
}

// OrderApproval is one row of an order's approval chain: (order, level) with
// a resolved approver and a one-way status.
type OrderApproval struct {
	ID            string
	OrderID       string
	OrderNumber   string
	ApprovalLevel int
	ApproverRole  string
	ApproverID    *string
	ApproverName  *string
	ApproverEmail *string
	Status        ApprovalStatus
	ApprovedAt    *time.Time
	RejectedAt    *time.Time
	Comments      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Approver is a resolved person who can act on an approval level.
type Approver struct {
	ID    string
	Name  string
	Email string
}
