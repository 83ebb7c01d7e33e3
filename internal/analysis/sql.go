package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"airquality-go/internal/state"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads the dataset from a table in Postgres or SQLite.
type SQLSource struct {
	driver string
	db     *sql.DB
}

// OpenSQLSource connects with the given database/sql driver name ("postgres"
// or "sqlite3") and verifies the connection.
func OpenSQLSource(ctx context.Context, driver, dsn string) (*SQLSource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLSource{driver: driver, db: db}, nil
}

// NewSQLSource wraps an existing connection.
func NewSQLSource(driver string, db *sql.DB) *SQLSource {
	return &SQLSource{driver: driver, db: db}
}

func (s *SQLSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ListTables returns the user tables visible on the connection.
func (s *SQLSource) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	if s.driver == "sqlite3" {
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// LoadTable reads every row of table into a state.Table. Column names follow
// the CSV header rules; NULLs become missing values.
func (s *SQLSource) LoadTable(ctx context.Context, table string) (*state.Table, error) {
	source := s.driver + ":" + table
	if !identifierPattern.MatchString(table) {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("invalid table name %q", table)}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	b, err := newTableBuilder(source, columns)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	fields := make([]string, len(columns))

	line := 1
	for rows.Next() {
		line++
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, &LoadError{Source: source, Line: line, Err: err}
		}
		for i, v := range values {
			fields[i] = sqlValueString(v)
		}
		if err := b.add(line, fields); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	return b.table(), nil
}

// sqlValueString renders a scanned value the way it would appear in a CSV cell.
func sqlValueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
