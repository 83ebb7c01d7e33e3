package service

import (
	"airquality-go/internal/state"
)

// FilterStation returns the rows recorded at station. An unknown station
// yields an empty table that keeps the source's column set.
func FilterStation(t *state.Table, station string) *state.Table {
	return t.Where(func(r state.Record) bool {
		return r.Station == station
	})
}
