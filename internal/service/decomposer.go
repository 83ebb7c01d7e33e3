package service

import (
	"math"
)

// Decomposition is an additive split of a series into trend, seasonal and
// residual parts, index-aligned with the input. Trend and Residual are NaN
// within half a period of either end.
type Decomposition struct {
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Residual []float64
	Period   int
}

// Decompose performs classical additive seasonal decomposition.
//
// The series must be free of NaN and Inf (run ForwardFill first) and hold at
// least two full periods.
func Decompose(values []float64, period int) (*Decomposition, error) {
	if period < 1 {
		return nil, &InvalidInputError{Reason: "period must be a positive number of samples", Index: -1}
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &InvalidInputError{Reason: "non-finite value", Index: i, Value: v}
		}
	}
	n := len(values)
	if n < 2*period {
		return nil, &InsufficientDataError{Required: 2 * period, Got: n}
	}

	observed := make([]float64, n)
	copy(observed, values)

	trend := centeredMovingAverage(observed, period)

	// Per-phase average of the detrended series, centered to mean zero.
	pattern := make([]float64, period)
	counts := make([]int, period)
	for i := 0; i < n; i++ {
		if math.IsNaN(trend[i]) {
			continue
		}
		pattern[i%period] += observed[i] - trend[i]
		counts[i%period]++
	}
	mean := 0.0
	for p := range pattern {
		if counts[p] > 0 {
			pattern[p] /= float64(counts[p])
		}
		mean += pattern[p]
	}
	mean /= float64(period)
	for p := range pattern {
		pattern[p] -= mean
	}

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i := 0; i < n; i++ {
		seasonal[i] = pattern[i%period]
		if math.IsNaN(trend[i]) {
			residual[i] = math.NaN()
			continue
		}
		residual[i] = observed[i] - trend[i] - seasonal[i]
	}

	return &Decomposition{
		Observed: observed,
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
		Period:   period,
	}, nil
}

// centeredMovingAverage uses a 2xm filter for even periods so the window
// stays centered on the sample.
func centeredMovingAverage(values []float64, period int) []float64 {
	n := len(values)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}

	half := period / 2
	if period%2 == 0 {
		for i := half; i < n-half; i++ {
			sum := 0.5*values[i-half] + 0.5*values[i+half]
			for j := i - half + 1; j < i+half; j++ {
				sum += values[j]
			}
			trend[i] = sum / float64(period)
		}
		return trend
	}

	for i := half; i < n-half; i++ {
		sum := 0.0
		for j := i - half; j <= i+half; j++ {
			sum += values[j]
		}
		trend[i] = sum / float64(period)
	}
	return trend
}

// Boundary reports whether index i has no trend estimate.
func (d *Decomposition) Boundary(i int) bool {
	return math.IsNaN(d.Trend[i])
}
