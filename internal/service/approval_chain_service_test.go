package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procuro-ai/be-po-orders/internal/repository"
	"github.com/procuro-ai/be-po-orders/internal/service"
)

func chainFixture(t *testing.T, wf *repository.ApprovalWorkflow, resolver *fakeResolver) (*service.ApprovalChainService, *fakeOrderStore, *fakeApprovalStore, *fakeNotifier) {
	t.Helper()

	workflows := &fakeWorkflowStore{}
	if wf != nil {
		require.NoError(t, workflows.Create(context.Background(), wf))
	}

	orders := newFakeOrderStore(&repository.Order{
		ID:          "order-1",
		OrderNumber: "ORD-20260827-A0001",
		Status:      repository.OrderStatusPendingApproval,
	})
	approvals := &fakeApprovalStore{}
	notifier := &fakeNotifier{}
	if resolver == nil {
		resolver = &fakeResolver{}
	}

	matcher := service.NewWorkflowMatcher(workflows, testLogger())
	svc := service.NewApprovalChainService(matcher, approvals, orders, resolver, notifier, testLogger())
	return svc, orders, approvals, notifier
}

func chainRequest(total string, paymentType repository.PaymentType) *service.ChainRequest {
	return &service.ChainRequest{
		OrderID:      "order-1",
		OrderNumber:  "ORD-20260827-A0001",
		EmployeeID:   "emp-1",
		EmployeeName: "Dana",
		OrderTotal:   dec(total),
		PaymentType:  paymentType,
		OrderDate:    time.Now(),
	}
}

func TestCreateApprovalChain_OneRowPerLevel(t *testing.T) {
	wf := &repository.ApprovalWorkflow{
		Name:     "two step",
		IsActive: true,
		Levels: []*repository.WorkflowApprovalLevel{
			{Level: 1, Role: "manager"},
			{Level: 2, Role: "director"},
		},
	}
	svc, orders, approvals, notifier := chainFixture(t, wf, nil)

	result, err := svc.CreateApprovalChain(context.Background(), chainRequest("3000", repository.PaymentTypeCash))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Approvals, 2)

	for i, a := range result.Approvals {
		require.Equal(t, i+1, a.ApprovalLevel)
		require.Equal(t, repository.ApprovalStatusPending, a.Status)
		require.Equal(t, "order-1", a.OrderID)
	}

	chain, err := approvals.ListByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, chain, 2)

	order, err := orders.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotNil(t, order.WorkflowID)
	require.Equal(t, wf.ID, *order.WorkflowID)

	// Only the first level's approver is notified at creation.
	require.Len(t, notifier.requests, 1)
	require.Equal(t, 1, notifier.requests[0].ApprovalLevel)
	require.Empty(t, notifier.nexts)
}

func TestCreateApprovalChain_NoMatchMeansNoApprovalRequired(t *testing.T) {
	svc, _, approvals, notifier := chainFixture(t, nil, nil)

	result, err := svc.CreateApprovalChain(context.Background(), chainRequest("100", repository.PaymentTypeCash))
	require.NoError(t, err)
	require.Nil(t, result)
	require.Empty(t, approvals.approvals)
	require.Empty(t, notifier.requests)
}

func TestCreateApprovalChain_WorkflowWithoutLevelsIsSkipped(t *testing.T) {
	wf := &repository.ApprovalWorkflow{Name: "empty", IsActive: true}
	svc, orders, approvals, _ := chainFixture(t, wf, nil)

	result, err := svc.CreateApprovalChain(context.Background(), chainRequest("100", repository.PaymentTypeCash))
	require.NoError(t, err)
	require.Nil(t, result)
	require.Empty(t, approvals.approvals)

	order, err := orders.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	require.Nil(t, order.WorkflowID)
}

func TestCreateApprovalChain_ApproverAssignment(t *testing.T) {
	wf := &repository.ApprovalWorkflow{
		Name:     "mixed assignment",
		IsActive: true,
		Levels: []*repository.WorkflowApprovalLevel{
			{Level: 1, Role: "manager", ApproverID: strPtr("u-9"), ApproverName: strPtr("Pat"), ApproverEmail: strPtr("pat@example.com")},
			{Level: 2, Role: "director"},
			{Level: 3, Role: "cfo"},
		},
	}
	resolver := &fakeResolver{approvers: map[string]*repository.Approver{
		"director": {ID: "u-2", Name: "Robin", Email: "robin@example.com"},
	}}
	svc, _, _, _ := chainFixture(t, wf, resolver)

	result, err := svc.CreateApprovalChain(context.Background(), chainRequest("3000", repository.PaymentTypeCash))
	require.NoError(t, err)
	require.Len(t, result.Approvals, 3)

	// Level 1: the workflow's explicit approver wins over the directory.
	first := result.Approvals[0]
	require.Equal(t, "u-9", *first.ApproverID)
	require.Equal(t, "pat@example.com", *first.ApproverEmail)

	// Level 2: resolved through the role directory.
	second := result.Approvals[1]
	require.Equal(t, "u-2", *second.ApproverID)
	require.Equal(t, "Robin", *second.ApproverName)

	// Level 3: no directory entry, row stays unassigned with only the role.
	third := result.Approvals[2]
	require.Nil(t, third.ApproverID)
	require.Equal(t, "cfo", third.ApproverRole)
}

func TestCreateApprovalChain_NotificationFailureDoesNotFail(t *testing.T) {
	wf := &repository.ApprovalWorkflow{
		Name:     "one step",
		IsActive: true,
		Levels:   []*repository.WorkflowApprovalLevel{{Level: 1, Role: "manager"}},
	}
	svc, _, approvals, notifier := chainFixture(t, wf, nil)
	notifier.err = context.DeadlineExceeded

	result, err := svc.CreateApprovalChain(context.Background(), chainRequest("3000", repository.PaymentTypeCash))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, approvals.approvals, 1)
}
