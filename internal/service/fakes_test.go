package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
	"github.com/procuro-ai/be-po-orders/internal/service"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// ── fakeOrderStore ───────────────────────────────────────────────────────────

type fakeOrderStore struct {
	orders     map[string]*repository.Order
	nextID     int
	createErr  error
	seq        int64
	seqErr     error
	numbers    []string
	numbersErr error
	levelSets  []int
}

func newFakeOrderStore(orders ...*repository.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[string]*repository.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeOrderStore) Create(_ context.Context, order *repository.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	if order.ID == "" {
		order.ID = fmt.Sprintf("order-%d", s.nextID)
	}
	s.orders[order.ID] = order
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (*repository.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return o, nil
}

func (s *fakeOrderStore) SetWorkflow(_ context.Context, orderID, workflowID string) error {
	o, ok := s.orders[orderID]
	if !ok {
		return apperrors.NotFound("order", orderID)
	}
	if o.WorkflowID == nil {
		wf := workflowID
		o.WorkflowID = &wf
	}
	return nil
}

func (s *fakeOrderStore) SetCurrentLevel(_ context.Context, orderID string, level int) error {
	o, ok := s.orders[orderID]
	if !ok {
		return apperrors.NotFound("order", orderID)
	}
	o.CurrentApprovalLevel = level
	s.levelSets = append(s.levelSets, level)
	return nil
}

func (s *fakeOrderStore) MarkApproved(_ context.Context, orderID string) (bool, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return false, apperrors.NotFound("order", orderID)
	}
	switch o.Status {
	case repository.OrderStatusPendingApproval:
		now := time.Now()
		o.Status = repository.OrderStatusApproved
		o.IsFullyApproved = true
		o.ApprovedAt = &now
		return true, nil
	case repository.OrderStatusApproved:
		return false, nil
	default:
		return false, apperrors.AlreadyProcessed(orderID, string(o.Status))
	}
}

func (s *fakeOrderStore) MarkRejected(_ context.Context, orderID, rejectedBy string, reason *string) error {
	o, ok := s.orders[orderID]
	if !ok {
		return apperrors.NotFound("order", orderID)
	}
	now := time.Now()
	o.Status = repository.OrderStatusRejected
	o.IsFullyApproved = false
	o.RejectedAt = &now
	o.RejectedBy = &rejectedBy
	o.RejectionReason = reason
	return nil
}

func (s *fakeOrderStore) OrderNumbersForDay(_ context.Context, _ string) ([]string, error) {
	if s.numbersErr != nil {
		return nil, s.numbersErr
	}
	return s.numbers, nil
}

func (s *fakeOrderStore) NextDaySequence(_ context.Context, _ string) (int64, error) {
	if s.seqErr != nil {
		return 0, s.seqErr
	}
	s.seq++
	return s.seq, nil
}

// ── fakeWorkflowStore ────────────────────────────────────────────────────────

type fakeWorkflowStore struct {
	workflows []*repository.ApprovalWorkflow
	nextID    int
	listErr   error
}

func (s *fakeWorkflowStore) Create(_ context.Context, wf *repository.ApprovalWorkflow) error {
	s.nextID++
	if wf.ID == "" {
		wf.ID = fmt.Sprintf("wf-%d", s.nextID)
	}
	for i, level := range wf.Levels {
		level.ID = fmt.Sprintf("%s-level-%d", wf.ID, i+1)
		level.WorkflowID = wf.ID
	}
	s.workflows = append(s.workflows, wf)
	return nil
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id string) (*repository.ApprovalWorkflow, error) {
	for _, wf := range s.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return nil, apperrors.NotFound("workflow", id)
}

func (s *fakeWorkflowStore) ListActive(_ context.Context) ([]*repository.ApprovalWorkflow, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var active []*repository.ApprovalWorkflow
	for _, wf := range s.workflows {
		if wf.IsActive {
			active = append(active, wf)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })
	return active, nil
}

// ── fakeApprovalStore ────────────────────────────────────────────────────────

type fakeApprovalStore struct {
	approvals []*repository.OrderApproval
	nextID    int
}

func (s *fakeApprovalStore) CreateChain(_ context.Context, approvals []*repository.OrderApproval) error {
	for _, a := range approvals {
		s.nextID++
		a.ID = fmt.Sprintf("approval-%d", s.nextID)
		s.approvals = append(s.approvals, a)
	}
	return nil
}

func (s *fakeApprovalStore) GetByID(_ context.Context, id string) (*repository.OrderApproval, error) {
	for _, a := range s.approvals {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperrors.NotFound("approval", id)
}

func (s *fakeApprovalStore) ListByOrder(_ context.Context, orderID string) ([]*repository.OrderApproval, error) {
	var chain []*repository.OrderApproval
	for _, a := range s.approvals {
		if a.OrderID == orderID {
			chain = append(chain, a)
		}
	}
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].ApprovalLevel < chain[j].ApprovalLevel })
	return chain, nil
}

func (s *fakeApprovalStore) PendingAtLevel(_ context.Context, orderID string, level int) (*repository.OrderApproval, error) {
	for _, a := range s.approvals {
		if a.OrderID == orderID && a.ApprovalLevel == level && a.Status == repository.ApprovalStatusPending {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeApprovalStore) CountByStatus(_ context.Context, orderID string, status repository.ApprovalStatus) (int, error) {
	count := 0
	for _, a := range s.approvals {
		if a.OrderID == orderID && a.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *fakeApprovalStore) CountByOrder(_ context.Context, orderID string) (int, error) {
	count := 0
	for _, a := range s.approvals {
		if a.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (s *fakeApprovalStore) RecordDecision(ctx context.Context, id string, status repository.ApprovalStatus, comments *string) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != repository.ApprovalStatusPending {
		return apperrors.AlreadyProcessed(id, string(a.Status))
	}
	now := time.Now()
	a.Status = status
	a.Comments = comments
	if status == repository.ApprovalStatusApproved {
		a.ApprovedAt = &now
	} else {
		a.RejectedAt = &now
	}
	return nil
}

func (s *fakeApprovalStore) Reopen(ctx context.Context, id string, comment string) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != repository.ApprovalStatusApproved {
		return apperrors.AlreadyProcessed(id, string(a.Status))
	}
	a.Status = repository.ApprovalStatusPending
	a.ApprovedAt = nil
	a.Comments = &comment
	return nil
}

func (s *fakeApprovalStore) PendingForApprover(_ context.Context, approverID string) ([]*repository.OrderApproval, error) {
	var pending []*repository.OrderApproval
	for _, a := range s.approvals {
		if a.Status != repository.ApprovalStatusPending {
			continue
		}
		if a.ApproverID != nil && *a.ApproverID == approverID {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

// ── fakeItemStore ────────────────────────────────────────────────────────────

type fakeItemStore struct {
	items    map[string]*repository.Item
	deducts  int
	restores int
}

func newFakeItemStore(items ...*repository.Item) *fakeItemStore {
	s := &fakeItemStore{items: make(map[string]*repository.Item)}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *fakeItemStore) GetByIDs(_ context.Context, ids []string) ([]*repository.Item, error) {
	var found []*repository.Item
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			found = append(found, item)
		}
	}
	return found, nil
}

func (s *fakeItemStore) DeductStock(_ context.Context, adjustments []repository.StockAdjustment) ([]string, error) {
	s.deducts++
	var missing []string
	for _, adj := range adjustments {
		item, ok := s.items[adj.ItemID]
		if !ok {
			missing = append(missing, adj.ItemID)
			continue
		}
		item.StockQuantity -= adj.Quantity
		if item.StockQuantity < 0 {
			item.StockQuantity = 0
		}
	}
	return missing, nil
}

func (s *fakeItemStore) RestoreStock(_ context.Context, adjustments []repository.StockAdjustment) ([]string, error) {
	s.restores++
	var missing []string
	for _, adj := range adjustments {
		item, ok := s.items[adj.ItemID]
		if !ok {
			missing = append(missing, adj.ItemID)
			continue
		}
		item.StockQuantity += adj.Quantity
	}
	return missing, nil
}

// ── fakeTransactionStore ─────────────────────────────────────────────────────

type fakeTransactionStore struct {
	byOrder map[string]*repository.Transaction
	nextID  int
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{byOrder: make(map[string]*repository.Transaction)}
}

func (s *fakeTransactionStore) Create(_ context.Context, t *repository.Transaction) error {
	s.nextID++
	t.ID = fmt.Sprintf("txn-%d", s.nextID)
	s.byOrder[t.OrderID] = t
	return nil
}

func (s *fakeTransactionStore) GetByOrderID(_ context.Context, orderID string) (*repository.Transaction, error) {
	t, ok := s.byOrder[orderID]
	if !ok {
		return nil, apperrors.NotFound("transaction", orderID)
	}
	return t, nil
}

func (s *fakeTransactionStore) ApplyPayment(_ context.Context, orderID string, amount decimal.Decimal) (*repository.Transaction, error) {
	t, ok := s.byOrder[orderID]
	if !ok {
		return nil, apperrors.NotFound("transaction", orderID)
	}
	t.PaidAmount = t.PaidAmount.Add(amount)
	t.Balance = t.Balance.Sub(amount)
	if t.Balance.LessThanOrEqual(decimal.Zero) {
		t.Status = "paid"
	} else {
		t.Status = "partial"
	}
	return t, nil
}

// ── fakeInstallmentStore ─────────────────────────────────────────────────────

type fakeInstallmentStore struct {
	installments []*repository.Installment
	nextID       int
}

func (s *fakeInstallmentStore) CreateBatch(_ context.Context, installments []*repository.Installment) error {
	for _, inst := range installments {
		s.nextID++
		inst.ID = fmt.Sprintf("inst-%d", s.nextID)
		s.installments = append(s.installments, inst)
	}
	return nil
}

func (s *fakeInstallmentStore) ListByOrder(_ context.Context, orderID string) ([]*repository.Installment, error) {
	var list []*repository.Installment
	for _, inst := range s.installments {
		if inst.OrderID == orderID {
			list = append(list, inst)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	return list, nil
}

func (s *fakeInstallmentStore) MarkPaid(_ context.Context, id string) (*repository.Installment, error) {
	for _, inst := range s.installments {
		if inst.ID != id {
			continue
		}
		if inst.Status != "pending" {
			return nil, apperrors.AlreadyProcessed(id, inst.Status)
		}
		now := time.Now()
		inst.Status = "paid"
		inst.PaidAt = &now
		return inst, nil
	}
	return nil, apperrors.NotFound("installment", id)
}

// ── fakeResolver ─────────────────────────────────────────────────────────────

type fakeResolver struct {
	approvers map[string]*repository.Approver
	err       error
}

func (r *fakeResolver) Resolve(_ context.Context, role string) (*repository.Approver, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.approvers[role], nil
}

// ── fakeNotifier ─────────────────────────────────────────────────────────────

type fakeNotifier struct {
	requests []*repository.OrderApproval
	nexts    []*repository.OrderApproval
	approved []*repository.Order
	rejected []*repository.Order
	err      error
}

func (n *fakeNotifier) result() service.NotificationResult {
	return service.NotificationResult{Delivered: n.err == nil, Err: n.err}
}

func (n *fakeNotifier) SendApprovalRequest(_ context.Context, approval *repository.OrderApproval, _ *repository.Order) service.NotificationResult {
	n.requests = append(n.requests, approval)
	return n.result()
}

func (n *fakeNotifier) SendNextApprovalNotification(_ context.Context, approval *repository.OrderApproval, _ *repository.Order) service.NotificationResult {
	n.nexts = append(n.nexts, approval)
	return n.result()
}

func (n *fakeNotifier) SendOrderApproved(_ context.Context, order *repository.Order, _ []string) service.NotificationResult {
	n.approved = append(n.approved, order)
	return n.result()
}

func (n *fakeNotifier) SendOrderRejected(_ context.Context, order *repository.Order, _ string, _ *string) service.NotificationResult {
	n.rejected = append(n.rejected, order)
	return n.result()
}
