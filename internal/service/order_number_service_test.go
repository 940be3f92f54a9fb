package service_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procuro-ai/be-po-orders/internal/service"
)

var numberDate = time.Date(2026, time.August, 27, 12, 0, 0, 0, time.UTC)

const numberPrefix = "ORD-20260827-"

func TestGenerateOrderNumber_CounterPath(t *testing.T) {
	orders := newFakeOrderStore()
	svc := service.NewOrderNumberService(orders, testLogger())

	require.Equal(t, numberPrefix+"A0001", svc.GenerateOrderNumber(context.Background(), numberDate))
	require.Equal(t, numberPrefix+"A0002", svc.GenerateOrderNumber(context.Background(), numberDate))
}

func TestGenerateOrderNumber_LetterRollover(t *testing.T) {
	orders := newFakeOrderStore()
	orders.seq = 9998 // counter sits just below the A→B boundary
	svc := service.NewOrderNumberService(orders, testLogger())

	require.Equal(t, numberPrefix+"A9999", svc.GenerateOrderNumber(context.Background(), numberDate))
	require.Equal(t, numberPrefix+"B0001", svc.GenerateOrderNumber(context.Background(), numberDate))
}

func TestGenerateOrderNumber_ScanFallback(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{name: "empty day starts at A0001", existing: nil, want: numberPrefix + "A0001"},
		{name: "increments the max", existing: []string{numberPrefix + "A0007", numberPrefix + "A0003"}, want: numberPrefix + "A0008"},
		{name: "A9999 rolls to B0001", existing: []string{numberPrefix + "A9999"}, want: numberPrefix + "B0001"},
		{name: "malformed suffixes are ignored", existing: []string{numberPrefix + "A0005", numberPrefix + "garbage", "unrelated"}, want: numberPrefix + "A0006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := newFakeOrderStore()
			orders.seqErr = errors.New("counter table missing")
			orders.numbers = tt.existing
			svc := service.NewOrderNumberService(orders, testLogger())

			require.Equal(t, tt.want, svc.GenerateOrderNumber(context.Background(), numberDate))
		})
	}
}

func TestGenerateOrderNumber_LastResortNeverFails(t *testing.T) {
	orders := newFakeOrderStore()
	orders.seqErr = errors.New("counter down")
	orders.numbersErr = errors.New("scan down")
	svc := service.NewOrderNumberService(orders, testLogger())

	got := svc.GenerateOrderNumber(context.Background(), numberDate)
	require.True(t, strings.HasPrefix(got, numberPrefix))
	require.Greater(t, len(got), len(numberPrefix))
}

func TestGenerateOrderNumber_ExhaustedDayFallsBack(t *testing.T) {
	orders := newFakeOrderStore()
	orders.seq = 26 * 9999 // Z9999 was the last issued number
	svc := service.NewOrderNumberService(orders, testLogger())

	got := svc.GenerateOrderNumber(context.Background(), numberDate)
	require.True(t, strings.HasPrefix(got, numberPrefix))
	require.False(t, regexp.MustCompile(`^[A-Z]\d{4}$`).MatchString(got[len(numberPrefix):]),
		"an exhausted day must not reuse the letter+number space")
}

func TestGenerateOrderNumber_ZeroDateUsesToday(t *testing.T) {
	orders := newFakeOrderStore()
	svc := service.NewOrderNumberService(orders, testLogger())

	got := svc.GenerateOrderNumber(context.Background(), time.Time{})
	wantPrefix := "ORD-" + time.Now().Format("20060102") + "-"
	require.True(t, strings.HasPrefix(got, wantPrefix), "got %s", got)
}
