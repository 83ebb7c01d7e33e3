package service

import "math"

// ForwardFill returns a copy of values where each NaN is replaced by the
// closest preceding non-NaN value. Leading NaNs have nothing to carry and stay NaN.
//
// This is not interpolation: a gap becomes a flat run at the last observed
// level, which shows up as a step in any trend computed afterwards.
func ForwardFill(values []float64) []float64 {
	out := make([]float64, len(values))
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = last
			continue
		}
		out[i] = v
		last = v
	}
	return out
}

// CountMissing returns how many entries of values are NaN.
func CountMissing(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
