// Package stats provides reference order statistics computed by a full sort.
// It is the slow, obviously-correct oracle the incremental accumulator is
// cross-checked against.
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	PercentileP95    = 0.95
)

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64

	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// Percentile returns the p-th percentile of values using linear interpolation.
// p must be in [0, 1]. The input slice is not modified (a copy is sorted internally).
// Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := make([]float64, count)
	copy(sorted, values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the interpolated 50th percentile of values.
// Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// OrderStatistic returns the k-th smallest element of values (0-based).
// The input slice is not modified. The second result is false when k is out
// of range.
func OrderStatistic[T cmp.Ordered](values []T, k int) (T, bool) {
	if k < 0 || k >= len(values) {
		var zero T

		return zero, false
	}

	sorted := make([]T, len(values))
	copy(sorted, values)
	slices.Sort(sorted)

	return sorted[k], true
}

// UpperMedian returns the element at index len/2 of the sorted values - for
// even counts the upper of the two middle elements, never an average. This
// matches the read-out convention of the incremental accumulator. The second
// result is false for an empty slice.
func UpperMedian[T cmp.Ordered](values []T) (T, bool) {
	return OrderStatistic(values, len(values)/2)
}
