package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"airquality-go/internal/state"

	"gonum.org/v1/gonum/stat"
)

// GroupEntry is the mean of one group. Count is the number of present values.
type GroupEntry struct {
	Key   string
	Mean  float64
	Count int
}

// GroupedSeries maps group keys to means, ordered by key. Rows with a
// missing key are dropped, and groups whose values were all missing have no
// entry.
type GroupedSeries struct {
	Key     state.Column
	Value   state.Column
	Entries []GroupEntry
}

// Get returns the mean for key.
func (g GroupedSeries) Get(key string) (float64, bool) {
	for _, e := range g.Entries {
		if e.Key == key {
			return e.Mean, true
		}
	}
	return 0, false
}

// GroupMean averages the value column over rows sharing the same key.
func GroupMean(t *state.Table, key, value state.Column) (GroupedSeries, error) {
	keys, err := t.Keys(key)
	if err != nil {
		return GroupedSeries{}, err
	}
	values, err := t.Values(value)
	if err != nil {
		return GroupedSeries{}, err
	}
	return GroupMeanValues(key, value, keys, values)
}

// GroupMeanValues groups pre-extracted values, for callers that transform a
// column (for example with ForwardFill) before grouping.
func GroupMeanValues(key, value state.Column, keys []string, values []float64) (GroupedSeries, error) {
	if len(keys) != len(values) {
		return GroupedSeries{}, fmt.Errorf("group %s by %s: %d keys for %d values", value, key, len(keys), len(values))
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
		if !math.IsNaN(values[i]) {
			buckets[k] = append(buckets[k], values[i])
		}
	}

	sortKeys(order, key.Kind() == state.KindInteger)

	entries := make([]GroupEntry, 0, len(order))
	for _, k := range order {
		vals := buckets[k]
		if len(vals) == 0 {
			continue
		}
		entries = append(entries, GroupEntry{
			Key:   k,
			Mean:  stat.Mean(vals, nil),
			Count: len(vals),
		})
	}

	return GroupedSeries{Key: key, Value: value, Entries: entries}, nil
}

func sortKeys(keys []string, numeric bool) {
	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
}
