package state

import (
	"math"
	"strconv"
)

// KnownStations are the twelve Beijing monitoring sites of the dataset.
var KnownStations = []string{
	"Aotizhongxin", "Changping", "Dingling", "Dongsi",
	"Guanyuan", "Gucheng", "Huairou", "Nongzhanguan",
	"Shunyi", "Tiantan", "Wanliu", "Wanshouxigong",
}

// IsKnownStation reports whether name is one of KnownStations.
func IsKnownStation(name string) bool {
	for _, s := range KnownStations {
		if s == name {
			return true
		}
	}
	return false
}

// Record is a single hourly observation. Missing measures are NaN.
type Record struct {
	Station       string
	WindDirection string

	Year  int
	Month int
	Day   int
	Hour  int

	PM25 float64
	PM10 float64
	SO2  float64
	NO2  float64
	CO   float64
	O3   float64

	Temp      float64
	Pres      float64
	Dewp      float64
	Rain      float64
	WindSpeed float64
}

// Value returns the numeric value of c. ok is false for categorical columns.
func (r Record) Value(c Column) (v float64, ok bool) {
	switch c {
	case ColYear:
		return float64(r.Year), true
	case ColMonth:
		return float64(r.Month), true
	case ColDay:
		return float64(r.Day), true
	case ColHour:
		return float64(r.Hour), true
	case ColPM25:
		return r.PM25, true
	case ColPM10:
		return r.PM10, true
	case ColSO2:
		return r.SO2, true
	case ColNO2:
		return r.NO2, true
	case ColCO:
		return r.CO, true
	case ColO3:
		return r.O3, true
	case ColTemp:
		return r.Temp, true
	case ColPres:
		return r.Pres, true
	case ColDewp:
		return r.Dewp, true
	case ColRain:
		return r.Rain, true
	case ColWindSpeed:
		return r.WindSpeed, true
	}
	return math.NaN(), false
}

// Key returns the grouping key of c. ok is false for measure columns.
func (r Record) Key(c Column) (key string, ok bool) {
	switch c {
	case ColStation:
		return r.Station, true
	case ColWindDirection:
		return r.WindDirection, true
	case ColYear:
		return strconv.Itoa(r.Year), true
	case ColMonth:
		return strconv.Itoa(r.Month), true
	case ColDay:
		return strconv.Itoa(r.Day), true
	case ColHour:
		return strconv.Itoa(r.Hour), true
	}
	return "", false
}

// NewRecord returns a record with every measure marked missing.
func NewRecord() Record {
	nan := math.NaN()
	return Record{
		PM25: nan, PM10: nan, SO2: nan, NO2: nan, CO: nan, O3: nan,
		Temp: nan, Pres: nan, Dewp: nan, Rain: nan, WindSpeed: nan,
	}
}

// SetValue assigns a measure column. It reports false for non-measure columns.
func (r *Record) SetValue(c Column, v float64) bool {
	switch c {
	case ColPM25:
		r.PM25 = v
	case ColPM10:
		r.PM10 = v
	case ColSO2:
		r.SO2 = v
	case ColNO2:
		r.NO2 = v
	case ColCO:
		r.CO = v
	case ColO3:
		r.O3 = v
	case ColTemp:
		r.Temp = v
	case ColPres:
		r.Pres = v
	case ColDewp:
		r.Dewp = v
	case ColRain:
		r.Rain = v
	case ColWindSpeed:
		r.WindSpeed = v
	default:
		return false
	}
	return true
}

// Table is an immutable, ordered set of records together with the columns
// that were present in its source. Accessors hand out copies.
type Table struct {
	columns []Column
	present map[Column]bool
	records []Record
}

// NewTable builds a table over copies of columns and records.
func NewTable(columns []Column, records []Record) *Table {
	t := &Table{
		columns: make([]Column, len(columns)),
		present: make(map[Column]bool, len(columns)),
		records: make([]Record, len(records)),
	}
	copy(t.columns, columns)
	copy(t.records, records)
	for _, c := range columns {
		t.present[c] = true
	}
	return t
}

// Columns returns the table's columns in canonical order.
func (t *Table) Columns() []Column {
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// NumericColumns returns the numeric columns present in the table.
func (t *Table) NumericColumns() []Column {
	var cols []Column
	for _, c := range t.columns {
		if c.IsNumeric() {
			cols = append(cols, c)
		}
	}
	return cols
}

// Has reports whether the table carries column c.
func (t *Table) Has(c Column) bool {
	return t.present[c]
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Record returns the i-th record by value.
func (t *Table) Record(i int) Record {
	return t.records[i]
}

// Records returns a copy of all records.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Values returns a fresh slice with the numeric values of c, NaN where missing.
func (t *Table) Values(c Column) ([]float64, error) {
	if err := RequireNumeric(c); err != nil {
		return nil, err
	}
	if !t.present[c] {
		return nil, &MissingColumnError{Column: c}
	}
	vals := make([]float64, len(t.records))
	for i, r := range t.records {
		vals[i], _ = r.Value(c)
	}
	return vals, nil
}

// Keys returns the grouping keys of c for every record.
func (t *Table) Keys(c Column) ([]string, error) {
	if err := RequireGroupable(c); err != nil {
		return nil, err
	}
	if !t.present[c] {
		return nil, &MissingColumnError{Column: c}
	}
	keys := make([]string, len(t.records))
	for i, r := range t.records {
		keys[i], _ = r.Key(c)
	}
	return keys, nil
}

// Stations returns distinct station values in order of first appearance.
// Rows without a station are not listed.
func (t *Table) Stations() []string {
	seen := make(map[string]bool)
	var stations []string
	for _, r := range t.records {
		if r.Station != "" && !seen[r.Station] {
			seen[r.Station] = true
			stations = append(stations, r.Station)
		}
	}
	return stations
}

// HasStation reports whether any record belongs to station.
func (t *Table) HasStation(station string) bool {
	for _, r := range t.records {
		if r.Station == station {
			return true
		}
	}
	return false
}

// Where returns a new table with the records matching keep, column set and
// order preserved.
func (t *Table) Where(keep func(Record) bool) *Table {
	out := &Table{
		columns: t.columns,
		present: t.present,
		records: make([]Record, 0),
	}
	for _, r := range t.records {
		if keep(r) {
			out.records = append(out.records, r)
		}
	}
	return out
}
