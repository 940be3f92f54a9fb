package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
)

// paymentLagDays separates a payroll cutoff from its scheduled payment date.
const paymentLagDays = 5

// InstallmentService computes and persists bi-monthly payment schedules and
// records installment payments against the order's ledger transaction.
type InstallmentService struct {
	installments InstallmentStore
	transactions TransactionStore
	log          *logger.Logger
}

// NewInstallmentService creates a new InstallmentService.
func NewInstallmentService(installments InstallmentStore, transactions TransactionStore, log *logger.Logger) *InstallmentService {
	return &InstallmentService{installments: installments, transactions: transactions, log: log}
}

// GenerateInstallments builds and persists the schedule for an order: two
// cutoffs per calendar month (the 15th and the last day), each paid 5 days
// after its cutoff, the total split evenly with the rounding remainder
// absorbed by the final installment so the amounts sum exactly to the total.
func (s *InstallmentService) GenerateInstallments(
	ctx context.Context,
	orderID string,
	months int,
	total decimal.Decimal,
	startDate time.Time,
) ([]*repository.Installment, error) {
	if months <= 0 {
		return nil, apperrors.InvalidInput("months", "must be positive")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.InvalidInput("total", "must be positive")
	}

	installments := ComputeSchedule(orderID, months, total, startDate)
	if err := s.installments.CreateBatch(ctx, installments); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", orderID).
		Int("installments", len(installments)).
		Str("total", total.StringFixed(2)).
		Msg("Installment schedule generated")
	return installments, nil
}

// ListByOrder returns an order's schedule.
func (s *InstallmentService) ListByOrder(ctx context.Context, orderID string) ([]*repository.Installment, error) {
	return s.installments.ListByOrder(ctx, orderID)
}

// RecordPayment marks an installment paid and rolls its amount into the
// order's transaction ledger.
func (s *InstallmentService) RecordPayment(ctx context.Context, installmentID string) (*repository.Installment, error) {
	inst, err := s.installments.MarkPaid(ctx, installmentID)
	if err != nil {
		return nil, err
	}

	txn, err := s.transactions.ApplyPayment(ctx, inst.OrderID, inst.Amount)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", inst.OrderID).
		Str("installment_id", inst.ID).
		Int("sequence", inst.Sequence).
		Str("amount", inst.Amount.StringFixed(2)).
		Str("balance", txn.Balance.StringFixed(2)).
		Msg("Installment payment recorded")
	return inst, nil
}

// ComputeSchedule is the pure scheduling core: months × 2 installments on
// successive bi-monthly cutoffs, starting with the first cutoff on or after
// startDate.
func ComputeSchedule(orderID string, months int, total decimal.Decimal, startDate time.Time) []*repository.Installment {
	count := months * 2
	per := total.DivRound(decimal.NewFromInt(int64(count)), 4).Truncate(2)

	installments := make([]*repository.Installment, 0, count)
	cutoff := firstCutoffOnOrAfter(startDate)
	running := decimal.Zero

	for i := 1; i <= count; i++ {
		amount := per
		if i == count {
			// Final installment absorbs the rounding remainder.
			amount = total.Sub(running)
		}
		running = running.Add(amount)

		installments = append(installments, &repository.Installment{
			OrderID:    orderID,
			Sequence:   i,
			CutoffDate: cutoff,
			DueDate:    cutoff.AddDate(0, 0, paymentLagDays),
			Amount:     amount,
			Status:     "pending",
		})
		cutoff = nextCutoff(cutoff)
	}
	return installments
}

// firstCutoffOnOrAfter returns the earliest bi-monthly cutoff (15th or
// month-end) not before d.
func firstCutoffOnOrAfter(d time.Time) time.Time {
	y, m, day := d.Date()
	if day <= 15 {
		return time.Date(y, m, 15, 0, 0, 0, 0, d.Location())
	}
	return endOfMonth(y, m, d.Location())
}

// nextCutoff alternates 15th → month-end → next month's 15th.
func nextCutoff(cutoff time.Time) time.Time {
	y, m, day := cutoff.Date()
	if day == 15 {
		return endOfMonth(y, m, cutoff.Location())
	}
	next := cutoff.AddDate(0, 0, 1) // first of the next month
	return time.Date(next.Year(), next.Month(), 15, 0, 0, 0, 0, cutoff.Location())
}

func endOfMonth(y int, m time.Month, loc *time.Location) time.Time {
	return time.Date(y, m+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
}
