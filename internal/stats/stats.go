// Package stats wraps the gonum statistics used by the quality cascade.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Median returns the median of values, averaging the two central values
// for even lengths. The input is not modified. Empty input yields NaN.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Mean returns the arithmetic mean of values, NaN when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// StdDev returns the sample standard deviation of values. Fewer than two
// values have no spread and yield 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Outside reports whether v lies strictly outside centre +/- k*sigma.
func Outside(v, centre, sigma, k float64) bool {
	return v < centre-k*sigma || v > centre+k*sigma
}

// ZeroNaN returns 0 for NaN and v otherwise.
func ZeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// WeightedMean returns sum(w*v)/sum(w) with NaN values and weights
// coerced to zero first. A zero total weight yields 0.
func WeightedMean(values, weights []float64) float64 {
	v := make([]float64, len(values))
	w := make([]float64, len(weights))
	for i := range values {
		v[i] = ZeroNaN(values[i])
		w[i] = ZeroNaN(weights[i])
	}
	total := floats.Sum(w)
	if total == 0 {
		return 0
	}
	return floats.Dot(v, w) / total
}
