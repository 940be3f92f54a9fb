package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/repository"
	"github.com/procuro-ai/be-po-orders/internal/service"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeSchedule_EvenSplit(t *testing.T) {
	// 3 months → 6 bi-monthly installments of exactly 1000 each.
	schedule := service.ComputeSchedule("order-1", 3, dec("6000"), day(2026, time.January, 10))
	require.Len(t, schedule, 6)

	wantCutoffs := []time.Time{
		day(2026, time.January, 15),
		day(2026, time.January, 31),
		day(2026, time.February, 15),
		day(2026, time.February, 28),
		day(2026, time.March, 15),
		day(2026, time.March, 31),
	}

	for i, inst := range schedule {
		require.Equal(t, i+1, inst.Sequence)
		require.Equal(t, "order-1", inst.OrderID)
		require.Equal(t, "pending", inst.Status)
		require.True(t, inst.Amount.Equal(dec("1000")), "installment %d amount = %s", i+1, inst.Amount)
		require.Equal(t, wantCutoffs[i], inst.CutoffDate, "installment %d cutoff", i+1)
		require.Equal(t, wantCutoffs[i].AddDate(0, 0, 5), inst.DueDate, "installment %d due date", i+1)
	}
}

func TestComputeSchedule_FinalInstallmentAbsorbsRemainder(t *testing.T) {
	// 100 / 6 does not divide evenly: five slices of 16.66, last one 16.70.
	schedule := service.ComputeSchedule("order-1", 3, dec("100"), day(2026, time.January, 1))
	require.Len(t, schedule, 6)

	sum := decimal.Zero
	for i, inst := range schedule {
		if i < 5 {
			require.True(t, inst.Amount.Equal(dec("16.66")), "installment %d amount = %s", i+1, inst.Amount)
		}
		sum = sum.Add(inst.Amount)
	}
	require.True(t, schedule[5].Amount.Equal(dec("16.70")), "last amount = %s", schedule[5].Amount)
	require.True(t, sum.Equal(dec("100")), "amounts must sum exactly to the total, got %s", sum)
}

func TestComputeSchedule_StartAfterMidMonth(t *testing.T) {
	// Ordering on the 20th skips the 15th: the first cutoff is month-end.
	schedule := service.ComputeSchedule("order-1", 1, dec("200"), day(2026, time.January, 20))
	require.Len(t, schedule, 2)
	require.Equal(t, day(2026, time.January, 31), schedule[0].CutoffDate)
	require.Equal(t, day(2026, time.February, 15), schedule[1].CutoffDate)
}

func TestComputeSchedule_StartOnCutoffDay(t *testing.T) {
	schedule := service.ComputeSchedule("order-1", 1, dec("200"), day(2026, time.March, 15))
	require.Equal(t, day(2026, time.March, 15), schedule[0].CutoffDate)
	require.Equal(t, day(2026, time.March, 31), schedule[1].CutoffDate)
}

func TestComputeSchedule_LeapFebruary(t *testing.T) {
	schedule := service.ComputeSchedule("order-1", 1, dec("200"), day(2028, time.February, 16))
	require.Equal(t, day(2028, time.February, 29), schedule[0].CutoffDate)
}

func TestGenerateInstallments_Validation(t *testing.T) {
	svc := service.NewInstallmentService(&fakeInstallmentStore{}, newFakeTransactionStore(), testLogger())

	_, err := svc.GenerateInstallments(context.Background(), "order-1", 0, dec("100"), day(2026, time.January, 1))
	require.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))

	_, err = svc.GenerateInstallments(context.Background(), "order-1", 3, dec("0"), day(2026, time.January, 1))
	require.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))
}

func TestRecordPayment_RollsIntoLedger(t *testing.T) {
	installments := &fakeInstallmentStore{}
	transactions := newFakeTransactionStore()
	svc := service.NewInstallmentService(installments, transactions, testLogger())

	require.NoError(t, transactions.Create(context.Background(), &repository.Transaction{
		OrderID:     "order-1",
		TotalAmount: dec("200"),
		PaidAmount:  decimal.Zero,
		Balance:     dec("200"),
		Status:      "unpaid",
	}))

	schedule, err := svc.GenerateInstallments(context.Background(), "order-1", 1, dec("200"), day(2026, time.January, 1))
	require.NoError(t, err)
	require.Len(t, schedule, 2)

	first, err := svc.RecordPayment(context.Background(), schedule[0].ID)
	require.NoError(t, err)
	require.Equal(t, "paid", first.Status)
	require.NotNil(t, first.PaidAt)

	txn, err := transactions.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	require.True(t, txn.Balance.Equal(dec("100")))
	require.Equal(t, "partial", txn.Status)

	_, err = svc.RecordPayment(context.Background(), schedule[1].ID)
	require.NoError(t, err)

	txn, err = transactions.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	require.True(t, txn.Balance.IsZero())
	require.Equal(t, "paid", txn.Status)
}

func TestRecordPayment_AlreadyPaid(t *testing.T) {
	installments := &fakeInstallmentStore{}
	transactions := newFakeTransactionStore()
	svc := service.NewInstallmentService(installments, transactions, testLogger())

	require.NoError(t, transactions.Create(context.Background(), &repository.Transaction{
		OrderID: "order-1", TotalAmount: dec("200"), Balance: dec("200"), Status: "unpaid",
	}))
	schedule, err := svc.GenerateInstallments(context.Background(), "order-1", 1, dec("200"), day(2026, time.January, 1))
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), schedule[0].ID)
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), schedule[0].ID)
	require.Equal(t, apperrors.CodeAlreadyProcessed, apperrors.CodeOf(err))
}
