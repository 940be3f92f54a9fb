package service

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/procuro-ai/be-po-orders/internal/logger"
)

const (
	orderNumberPrefix = "ORD"
	maxPerLetter      = 9999
	maxPerDay         = 26 * maxPerLetter
)

// daySequencePattern matches the trailing "{Letter}{0001-9999}" of a day's
// order number, e.g. "A0042".
var daySequencePattern = regexp.MustCompile(`^([A-Z])(\d{4})$`)

// OrderNumberService produces unique human-readable order identifiers of the
// form ORD-YYYYMMDD-{Letter}{0001-9999}.
//
// The primary path is an atomic per-day counter, which is race-free. When the
// counter is unavailable the service falls back to scanning the day's
// existing numbers and incrementing the maximum (the historical behavior,
// which carries a read-then-write race window), and as a last resort to a
// timestamp+random suffix. Number generation never fails order creation.
type OrderNumberService struct {
	orders OrderStore
	log    *logger.Logger
	now    func() time.Time
}

// NewOrderNumberService creates a new OrderNumberService.
func NewOrderNumberService(orders OrderStore, log *logger.Logger) *OrderNumberService {
	return &OrderNumberService{orders: orders, log: log, now: time.Now}
}

// GenerateOrderNumber returns the next order number for the given date
// (zero date = today).
func (s *OrderNumberService) GenerateOrderNumber(ctx context.Context, date time.Time) string {
	if date.IsZero() {
		date = s.now()
	}
	day := date.Format("20060102")
	prefix := fmt.Sprintf("%s-%s-", orderNumberPrefix, day)

	seq, err := s.orders.NextDaySequence(ctx, day)
	if err == nil && seq >= 1 && seq <= maxPerDay {
		letter := rune('A' + (seq-1)/maxPerLetter)
		number := (seq-1)%maxPerLetter + 1
		return fmt.Sprintf("%s%c%04d", prefix, letter, number)
	}
	if err != nil {
		s.log.Warn().Err(err).
			Str("day", day).
			Msg("Order number counter unavailable; falling back to scan")
	} else {
		s.log.Warn().
			Str("day", day).
			Int64("sequence", seq).
			Msg("Order number space exhausted for the day; falling back")
		return s.fallbackNumber(prefix)
	}

	numbers, err := s.orders.OrderNumbersForDay(ctx, prefix)
	if err != nil {
		s.log.Warn().Err(err).
			Str("day", day).
			Msg("Could not scan existing order numbers; using fallback suffix")
		return s.fallbackNumber(prefix)
	}

	letter, number, ok := nextDaySequence(numbers, prefix)
	if !ok {
		return s.fallbackNumber(prefix)
	}
	return fmt.Sprintf("%s%c%04d", prefix, letter, number)
}

// nextDaySequence computes the next (letter, number) pair from a day's
// existing order numbers: the maximum of letterIndex*10000+number is
// incremented by one, rolling A9999 over to B0001. Malformed suffixes are
// ignored. ok is false only when the day's space is exhausted.
func nextDaySequence(numbers []string, prefix string) (letter rune, number int, ok bool) {
	maxRank := 0
	for _, n := range numbers {
		if len(n) <= len(prefix) || n[:len(prefix)] != prefix {
			continue
		}
		m := daySequencePattern.FindStringSubmatch(n[len(prefix):])
		if m == nil {
			continue
		}
		l := rune(m[1][0])
		var num int
		fmt.Sscanf(m[2], "%d", &num)
		rank := int(l-'A')*10000 + num
		if rank > maxRank {
			maxRank = rank
		}
	}

	if maxRank == 0 {
		return 'A', 1, true
	}

	lastLetter := rune('A' + maxRank/10000)
	lastNumber := maxRank % 10000
	if lastNumber >= maxPerLetter {
		if lastLetter >= 'Z' {
			return 0, 0, false
		}
		return lastLetter + 1, 1, true
	}
	return lastLetter, lastNumber + 1, true
}

// fallbackNumber is the last-resort identifier when the store cannot be
// consulted: unique enough to not block order creation.
func (s *OrderNumberService) fallbackNumber(prefix string) string {
	return fmt.Sprintf("%s%d%04d", prefix, s.now().UnixMilli(), rand.Intn(10000))
}
