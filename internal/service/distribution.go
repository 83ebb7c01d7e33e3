package service

import (
	"sort"

	"airquality-go/internal/state"
)

// BoxStats summarizes the spread of one group for a box plot. Whiskers reach
// the most extreme values within 1.5 IQR of the quartiles; anything beyond is
// an outlier.
type BoxStats struct {
	Key          string
	Count        int
	Q1           float64
	Median       float64
	Q3           float64
	LowerWhisker float64
	UpperWhisker float64
	Outliers     []float64
}

// Distribution computes box statistics of value grouped by key. Rows with a
// missing key and groups with no present values are omitted.
func Distribution(t *state.Table, key, value state.Column) ([]BoxStats, error) {
	keys, err := t.Keys(key)
	if err != nil {
		return nil, err
	}
	values, err := t.Values(value)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]float64)
	var order []string
	for i, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := buckets[k]; !ok {
			buckets[k] = nil
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], values[i])
	}
	sortKeys(order, key.Kind() == state.KindInteger)

	out := make([]BoxStats, 0, len(order))
	for _, k := range order {
		present := dropMissing(buckets[k])
		if len(present) == 0 {
			continue
		}
		out = append(out, boxStats(k, present))
	}
	return out, nil
}

func boxStats(key string, present []float64) BoxStats {
	sort.Float64s(present)
	q1 := Quantile(present, 0.25)
	q3 := Quantile(present, 0.75)
	iqr := q3 - q1
	lowFence, highFence := q1-1.5*iqr, q3+1.5*iqr

	b := BoxStats{
		Key:          key,
		Count:        len(present),
		Q1:           q1,
		Median:       Quantile(present, 0.5),
		Q3:           q3,
		LowerWhisker: q1,
		UpperWhisker: q3,
		Outliers:     []float64{},
	}
	for _, v := range present {
		if v >= lowFence {
			b.LowerWhisker = v
			break
		}
	}
	for i := len(present) - 1; i >= 0; i-- {
		if present[i] <= highFence {
			b.UpperWhisker = present[i]
			break
		}
	}
	for _, v := range present {
		if v < lowFence || v > highFence {
			b.Outliers = append(b.Outliers, v)
		}
	}
	return b
}
