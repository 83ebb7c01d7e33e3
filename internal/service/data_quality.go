package service

import (
	"math"

	"airquality-go/internal/state"
)

// DataQualityProfile holds completeness metrics for a column
type DataQualityProfile struct {
	Column      state.Column
	TotalRows   int
	NonNullRows int
	NullRate    float64
	// LongestGap is the longest run of consecutive missing values; the
	// number of samples ForwardFill would bridge in one go.
	LongestGap    int
	DistinctCount int
	Entropy       float64
	QualityScore  float64 // 0-1
}

// DataQualityProfiler analyzes missing-value metrics per column
type DataQualityProfiler struct{}

// NewDataQualityProfiler creates a new profiler
func NewDataQualityProfiler() *DataQualityProfiler {
	return &DataQualityProfiler{}
}

// ProfileColumn analyzes quality metrics for a single column
func (dqp *DataQualityProfiler) ProfileColumn(t *state.Table, c state.Column) (DataQualityProfile, error) {
	profile := DataQualityProfile{
		Column:    c,
		TotalRows: t.Len(),
	}

	uniqueValues := make(map[string]int)
	gap := 0

	if c.IsNumeric() && c.Kind() == state.KindMeasure {
		values, err := t.Values(c)
		if err != nil {
			return profile, err
		}
		for _, v := range values {
			if math.IsNaN(v) {
				gap++
				profile.LongestGap = max(profile.LongestGap, gap)
				continue
			}
			gap = 0
			profile.NonNullRows++
		}
	} else {
		keys, err := t.Keys(c)
		if err != nil {
			return profile, err
		}
		for _, k := range keys {
			if k == "" {
				gap++
				profile.LongestGap = max(profile.LongestGap, gap)
				continue
			}
			gap = 0
			profile.NonNullRows++
			uniqueValues[k]++
		}
	}

	profile.DistinctCount = len(uniqueValues)
	if profile.TotalRows > 0 {
		profile.NullRate = float64(profile.TotalRows-profile.NonNullRows) / float64(profile.TotalRows)
	}
	profile.Entropy = dqp.calculateEntropy(uniqueValues, profile.NonNullRows)
	profile.QualityScore = dqp.calculateQualityScore(profile)

	return profile, nil
}

// ProfileAllColumns profiles every column the table carries
func (dqp *DataQualityProfiler) ProfileAllColumns(t *state.Table) []DataQualityProfile {
	cols := t.Columns()
	profiles := make([]DataQualityProfile, 0, len(cols))
	for _, c := range cols {
		p, err := dqp.ProfileColumn(t, c)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// calculateEntropy computes Shannon entropy of categorical values
func (dqp *DataQualityProfiler) calculateEntropy(valueCounts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}

	entropy := 0.0
	for _, count := range valueCounts {
		if count > 0 {
			p := float64(count) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}

	return entropy
}

// calculateQualityScore computes overall completeness (0-1)
func (dqp *DataQualityProfiler) calculateQualityScore(profile DataQualityProfile) float64 {
	score := 1.0 - profile.NullRate

	// Long outages hurt more than scattered gaps: a day-long hole distorts
	// a 24-sample decomposition even when the overall null rate is low.
	if profile.TotalRows > 0 && profile.LongestGap > 0 {
		gapShare := float64(profile.LongestGap) / float64(profile.TotalRows)
		score *= math.Max(0.5, 1.0-gapShare)
	}

	return math.Max(0, math.Min(1, score))
}
