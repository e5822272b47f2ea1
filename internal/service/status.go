package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/enum"
)

// maxSiblingIDAttempts bounds how many suffixes Reopen reserves before giving up.
const maxSiblingIDAttempts = 5

// CompletedLabel returns the status of an order completed n times:
// "Completed" for the first completion, "Completed n" after that.
func CompletedLabel(n int) string {
	if n <= 1 {
		return enum.OrderStatusCompleted
	}
	return fmt.Sprintf("%s %d", enum.OrderStatusCompleted, n)
}

// ParseCompleted reports whether status is a completed status and how many
// completions it encodes.
func ParseCompleted(status string) (int, bool) {
	if status == enum.OrderStatusCompleted {
		return 1, true
	}
	rest, ok := strings.CutPrefix(status, enum.OrderStatusCompleted+" ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// completions returns how many times order has been completed. The status
// label wins over completion_count when the two disagree, so a row whose
// counter lags behind "Completed n" still advances to "Completed n+1".
func completions(order database.ProductionOrder) int {
	n := int(order.CompletionCount)
	if c, ok := ParseCompleted(order.Status); ok && c > n {
		n = c
	}
	return n
}

// DeriveSiblingID appends the decimal digits of suffix to parent:
// DeriveSiblingID(1001, 2) = 10012, DeriveSiblingID(1001, 12) = 100112.
func DeriveSiblingID(parent int64, suffix int32) (int64, error) {
	if parent <= 0 || suffix <= 0 {
		return 0, fmt.Errorf("derive sibling id from %d/%d: %w", parent, suffix, ErrSiblingIDExhausted)
	}
	mult := int64(1)
	for n := suffix; n > 0; n /= 10 {
		mult *= 10
	}
	if parent > (math.MaxInt64-int64(suffix))/mult {
		return 0, fmt.Errorf("sibling id of %d overflows: %w", parent, ErrSiblingIDExhausted)
	}
	return parent*mult + int64(suffix), nil
}
