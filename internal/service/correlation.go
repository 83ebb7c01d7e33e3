package service

import (
	"math"

	"airquality-go/internal/state"

	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix holds pairwise Pearson coefficients for Columns.
// Values[i][j] is NaN when the pair has fewer than two complete rows or one
// side has zero variance.
type CorrelationMatrix struct {
	Columns []state.Column
	Values  [][]float64
	// Pairs[i][j] is the number of rows where both columns were present.
	Pairs [][]int
}

// At returns the coefficient for a column pair.
func (m CorrelationMatrix) At(a, b state.Column) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

func (m CorrelationMatrix) index(c state.Column) int {
	for i, col := range m.Columns {
		if col == c {
			return i
		}
	}
	return -1
}

// Correlate computes a pairwise-complete Pearson correlation matrix.
func Correlate(t *state.Table, columns []state.Column) (CorrelationMatrix, error) {
	data := make([][]float64, len(columns))
	for i, c := range columns {
		vals, err := t.Values(c)
		if err != nil {
			return CorrelationMatrix{}, err
		}
		data[i] = vals
	}

	n := len(columns)
	m := CorrelationMatrix{
		Columns: append([]state.Column(nil), columns...),
		Values:  make([][]float64, n),
		Pairs:   make([][]int, n),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
		m.Pairs[i] = make([]int, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			x, y := completePairs(data[i], data[j])
			r := math.NaN()
			if i == j {
				if len(x) >= 2 && !isConstant(x) {
					r = 1
				}
			} else {
				r = pearson(x, y)
			}
			m.Values[i][j], m.Values[j][i] = r, r
			m.Pairs[i][j], m.Pairs[j][i] = len(x), len(x)
		}
	}
	return m, nil
}

// completePairs keeps the positions where both x and y are present.
func completePairs(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 || isConstant(x) || isConstant(y) {
		return math.NaN()
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, r))
}

func isConstant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

// Strength describes a coefficient in words.
func Strength(r float64) string {
	switch {
	case math.IsNaN(r):
		return "Undefined"
	case r > 0.7:
		return "Strong positive"
	case r < -0.7:
		return "Strong negative"
	case r > 0.3:
		return "Moderate positive"
	case r < -0.3:
		return "Moderate negative"
	default:
		return "Weak/None"
	}
}
