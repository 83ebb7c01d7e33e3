// Package analysis loads the air-quality dataset from CSV files or SQL tables
// into an immutable state.Table.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"airquality-go/internal/logging"
	"airquality-go/internal/state"
)

// LoadError reports a dataset that could not be read or is malformed.
// Line is the 1-based input line, or 0 when the failure is not tied to one.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CSVService reads delimited dataset files.
type CSVService struct{}

func NewCSVService() *CSVService {
	return &CSVService{}
}

// LoadFile opens path and parses it as a dataset CSV.
func (s *CSVService) LoadFile(path string) (*state.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer file.Close()

	return s.LoadReader(file, path)
}

// LoadReader parses CSV from r. source names the input in errors and logs.
func (s *CSVService) LoadReader(r io.Reader, source string) (*state.Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty input")
		}
		return nil, &LoadError{Source: source, Line: 1, Err: err}
	}

	b, err := newTableBuilder(source, headers)
	if err != nil {
		return nil, err
	}

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &LoadError{Source: source, Line: line, Err: err}
		}
		if err := b.add(line, row); err != nil {
			return nil, err
		}
	}

	return b.table(), nil
}

// ============================================================================
// Row conversion shared by the CSV and SQL sources
// ============================================================================

type tableBuilder struct {
	source  string
	columns []state.Column
	// index[i] is the column of input field i, or "" for ignored fields such as a row number.
	index    []state.Column
	records  []state.Record
	warnOnce map[string]bool
}

func newTableBuilder(source string, headers []string) (*tableBuilder, error) {
	b := &tableBuilder{
		source:   source,
		index:    make([]state.Column, len(headers)),
		warnOnce: make(map[string]bool),
	}

	seen := make(map[state.Column]bool)
	for i, h := range headers {
		c, err := state.ParseColumn(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if err != nil {
			continue
		}
		if seen[c] {
			return nil, &LoadError{Source: source, Line: 1, Err: fmt.Errorf("duplicate column %q", c)}
		}
		seen[c] = true
		b.index[i] = c
	}

	var missing []string
	for _, c := range state.RequiredColumns {
		if !seen[c] {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{Source: source, Line: 1, Err: fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))}
	}

	for _, c := range state.AllColumns {
		if seen[c] {
			b.columns = append(b.columns, c)
		}
	}
	return b, nil
}

func (b *tableBuilder) add(line int, fields []string) error {
	r := state.NewRecord()
	for i, c := range b.index {
		if c == "" || i >= len(fields) {
			continue
		}
		raw := strings.TrimSpace(fields[i])

		switch c.Kind() {
		case state.KindCategorical:
			if isMissing(raw) {
				raw = ""
			}
			if c == state.ColStation {
				r.Station = raw
			} else {
				r.WindDirection = raw
			}
		case state.KindInteger:
			n, err := parseInteger(raw)
			if err != nil {
				return &LoadError{Source: b.source, Line: line, Err: fmt.Errorf("column %s: %w", c, err)}
			}
			setInteger(&r, c, n)
		case state.KindMeasure:
			r.SetValue(c, parseMeasure(raw))
		}
	}

	if r.Station != "" && !state.IsKnownStation(r.Station) && !b.warnOnce[r.Station] {
		b.warnOnce[r.Station] = true
		logging.Warn().
			Str("source", b.source).
			Int("line", line).
			Str("station", r.Station).
			Msg("Unrecognized station name")
	}

	b.records = append(b.records, r)
	return nil
}

func (b *tableBuilder) table() *state.Table {
	return state.NewTable(b.columns, b.records)
}

// parseInteger accepts plain integers and integral floats such as "3.0",
// which some exporters write for integer columns.
func parseInteger(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("malformed integer %q", raw)
	}
	return int(f), nil
}

// isMissing reports whether raw is one of the tokens exporters write for a
// missing cell.
func isMissing(raw string) bool {
	switch strings.ToLower(raw) {
	case "", "na", "nan", "null", "none", "n/a":
		return true
	}
	return false
}

// parseMeasure returns NaN for empty, NA-style or unparseable values.
func parseMeasure(raw string) float64 {
	if isMissing(raw) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func setInteger(r *state.Record, c state.Column, n int) {
	switch c {
	case state.ColYear:
		r.Year = n
	case state.ColMonth:
		r.Month = n
	case state.ColDay:
		r.Day = n
	case state.ColHour:
		r.Hour = n
	}
}
