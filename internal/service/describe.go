package service

import (
	"math"
	"sort"

	"airquality-go/internal/state"

	"gonum.org/v1/gonum/stat"
)

// ColumnSummary holds descriptive statistics for one numeric column,
// computed over its present values.
type ColumnSummary struct {
	Column state.Column
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// Describe summarizes every numeric column of t. Columns with no present
// values report Count 0 and NaN statistics.
func Describe(t *state.Table) []ColumnSummary {
	cols := t.NumericColumns()
	out := make([]ColumnSummary, 0, len(cols))
	for _, c := range cols {
		vals, err := t.Values(c)
		if err != nil {
			continue
		}
		out = append(out, summarize(c, vals))
	}
	return out
}

func summarize(c state.Column, values []float64) ColumnSummary {
	present := dropMissing(values)
	s := ColumnSummary{Column: c, Count: len(present)}

	nan := math.NaN()
	if len(present) == 0 {
		s.Mean, s.StdDev, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}

	sort.Float64s(present)
	s.Mean = stat.Mean(present, nil)
	s.StdDev = nan
	if len(present) > 1 {
		s.StdDev = stat.StdDev(present, nil)
	}
	s.Min = present[0]
	s.Max = present[len(present)-1]
	s.Q25 = Quantile(present, 0.25)
	s.Median = Quantile(present, 0.5)
	s.Q75 = Quantile(present, 0.75)
	return s
}

// Quantile returns the p-quantile of sorted data using linear interpolation
// between closest ranks, the default used by most dataframe libraries.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func dropMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
