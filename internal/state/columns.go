package state

import (
	"fmt"
	"strings"
)

// Column identifies one of the known dataset columns.
type Column string

const (
	ColStation       Column = "station"
	ColYear          Column = "year"
	ColMonth         Column = "month"
	ColDay           Column = "day"
	ColHour          Column = "hour"
	ColPM25          Column = "PM2.5"
	ColPM10          Column = "PM10"
	ColSO2           Column = "SO2"
	ColNO2           Column = "NO2"
	ColCO            Column = "CO"
	ColO3            Column = "O3"
	ColTemp          Column = "TEMP"
	ColPres          Column = "PRES"
	ColDewp          Column = "DEWP"
	ColRain          Column = "RAIN"
	ColWindSpeed     Column = "WSPM"
	ColWindDirection Column = "wd"
)

// Kind classifies a column by how its values can be used.
type Kind int

const (
	KindCategorical Kind = iota
	KindInteger
	KindMeasure
)

func (k Kind) String() string {
	switch k {
	case KindCategorical:
		return "categorical"
	case KindInteger:
		return "integer"
	case KindMeasure:
		return "measure"
	}
	return "unknown"
}

// AllColumns lists every known column in canonical order.
var AllColumns = []Column{
	ColStation, ColYear, ColMonth, ColDay, ColHour,
	ColPM25, ColPM10, ColSO2, ColNO2, ColCO, ColO3,
	ColTemp, ColPres, ColDewp, ColRain, ColWindSpeed,
	ColWindDirection,
}

// RequiredColumns must be present in every loaded table.
var RequiredColumns = []Column{
	ColStation, ColMonth, ColDay, ColHour,
	ColPM10, ColPM25, ColSO2, ColNO2, ColCO, ColO3,
	ColTemp, ColPres, ColDewp, ColWindDirection,
}

// Pollutants are the columns a user may select as the pollutant of interest.
var Pollutants = []Column{ColPM25, ColPM10, ColSO2, ColNO2, ColCO, ColO3}

var columnKinds = map[Column]Kind{
	ColStation:       KindCategorical,
	ColWindDirection: KindCategorical,
	ColYear:          KindInteger,
	ColMonth:         KindInteger,
	ColDay:           KindInteger,
	ColHour:          KindInteger,
	ColPM25:          KindMeasure,
	ColPM10:          KindMeasure,
	ColSO2:           KindMeasure,
	ColNO2:           KindMeasure,
	ColCO:            KindMeasure,
	ColO3:            KindMeasure,
	ColTemp:          KindMeasure,
	ColPres:          KindMeasure,
	ColDewp:          KindMeasure,
	ColRain:          KindMeasure,
	ColWindSpeed:     KindMeasure,
}

// ParseColumn resolves an exact, case-sensitive column name.
func ParseColumn(name string) (Column, error) {
	c := Column(name)
	if _, ok := columnKinds[c]; !ok {
		return "", &UnknownColumnError{Name: name}
	}
	return c, nil
}

// ParseColumns parses a comma separated list of column names. Empty entries are skipped.
func ParseColumns(list string) ([]Column, error) {
	var cols []Column
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := ParseColumn(part)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Kind returns the column's kind. Unknown columns report KindCategorical.
func (c Column) Kind() Kind {
	return columnKinds[c]
}

// IsKnown reports whether c is one of the enumerated columns.
func (c Column) IsKnown() bool {
	_, ok := columnKinds[c]
	return ok
}

// IsNumeric reports whether the column holds integer or measure values.
func (c Column) IsNumeric() bool {
	k, ok := columnKinds[c]
	return ok && k != KindCategorical
}

// IsGroupable reports whether the column can be used as a grouping key.
func (c Column) IsGroupable() bool {
	k, ok := columnKinds[c]
	return ok && k != KindMeasure
}

// IsPollutant reports whether the column is one of the pollutant concentrations.
func (c Column) IsPollutant() bool {
	for _, p := range Pollutants {
		if p == c {
			return true
		}
	}
	return false
}

// RequireNumeric fails unless c is a known numeric column.
func RequireNumeric(c Column) error {
	if !c.IsKnown() {
		return &UnknownColumnError{Name: string(c)}
	}
	if !c.IsNumeric() {
		return &ColumnKindError{Column: c, Want: "numeric"}
	}
	return nil
}

// RequireGroupable fails unless c is a known grouping column.
func RequireGroupable(c Column) error {
	if !c.IsKnown() {
		return &UnknownColumnError{Name: string(c)}
	}
	if !c.IsGroupable() {
		return &ColumnKindError{Column: c, Want: "categorical or integer"}
	}
	return nil
}

// UnknownColumnError reports a column name outside the known enumeration.
type UnknownColumnError struct {
	Name string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Name)
}

// ColumnKindError reports a known column used where another kind is required.
type ColumnKindError struct {
	Column Column
	Want   string
}

func (e *ColumnKindError) Error() string {
	return fmt.Sprintf("column %q is %s, want %s", e.Column, e.Column.Kind(), e.Want)
}

// MissingColumnError reports a known column that the table does not carry.
type MissingColumnError struct {
	Column Column
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not present in table", e.Column)
}
