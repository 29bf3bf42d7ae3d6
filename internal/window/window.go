// Package window provides temporal bucketing for windowed rule
// aggregation.
//
// Windows are fixed-origin: boundaries are aligned to step 0, not slid
// around each transaction. A burst of activity that straddles a boundary
// can therefore split across two adjacent windows. This under-detection
// is a known, intentional property of the detection semantics, not a bug.
package window

import (
	"math"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Key maps a transaction's step into its window bucket.
//
// temporalScale converts the dataset-native step unit into real hours:
// 1.0 when steps already represent hours, 24.0 when steps represent
// days. Two transactions share a window iff their keys are equal.
func Key(step, windowSizeHours, temporalScale float64) int64 {
	if windowSizeHours <= 0 {
		return 0
	}
	return int64(math.Floor(step * temporalScale / windowSizeHours))
}

// GroupBy partitions transactions by an extracted key, preserving each
// group's original transaction order.
func GroupBy(txs []domain.Transaction, keyFn func(*domain.Transaction) string) map[string][]domain.Transaction {
	groups := make(map[string][]domain.Transaction)
	for i := range txs {
		k := keyFn(&txs[i])
		groups[k] = append(groups[k], txs[i])
	}
	return groups
}

// Partition buckets one group's transactions by window key. Every
// windowed rule shares this same bucketing; the windowing contract lives
// here and nowhere else.
func Partition(group []domain.Transaction, windowSizeHours, temporalScale float64) map[int64][]domain.Transaction {
	buckets := make(map[int64][]domain.Transaction)
	for i := range group {
		k := Key(group[i].Step, windowSizeHours, temporalScale)
		buckets[k] = append(buckets[k], group[i])
	}
	return buckets
}
