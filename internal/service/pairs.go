package service

import (
	"math"

	"airquality-go/internal/state"
)

// Point is one (x, y) observation for line and scatter charts.
type Point struct {
	X float64
	Y float64
}

// Pairs returns the (x, y) values of every row where both are present, in row order.
func Pairs(t *state.Table, x, y state.Column) ([]Point, error) {
	xs, err := t.Values(x)
	if err != nil {
		return nil, err
	}
	ys, err := t.Values(y)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		points = append(points, Point{X: xs[i], Y: ys[i]})
	}
	return points, nil
}
