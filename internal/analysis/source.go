package analysis

import (
	"context"
	"fmt"
	"time"

	"airquality-go/internal/config"
	"airquality-go/internal/logging"
	"airquality-go/internal/metrics"
	"airquality-go/internal/state"
)

// Load reads the dataset described by cfg into a snapshot.
func Load(ctx context.Context, cfg config.DataConfig) (*state.Snapshot, error) {
	start := time.Now()

	var (
		table  *state.Table
		source string
		err    error
	)
	switch cfg.Driver {
	case "csv", "":
		source = cfg.Path
		table, err = NewCSVService().LoadFile(cfg.Path)
	case "postgres", "sqlite3":
		source = cfg.Driver + ":" + cfg.Table
		table, err = loadSQL(ctx, cfg)
	default:
		err = &LoadError{Source: cfg.Driver, Err: fmt.Errorf("unsupported driver %q", cfg.Driver)}
	}

	return finishLoad(cfg.Driver, source, table, err, start)
}

// Snapshot wraps a table loaded outside Load, such as an upload, and records
// the outcome the same way.
func Snapshot(kind, source string, table *state.Table, err error) (*state.Snapshot, error) {
	return finishLoad(kind, source, table, err, time.Now())
}

func loadSQL(ctx context.Context, cfg config.DataConfig) (*state.Table, error) {
	src, err := OpenSQLSource(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, &LoadError{Source: cfg.Driver + ":" + cfg.Table, Err: err}
	}
	defer src.Close()

	return src.LoadTable(ctx, cfg.Table)
}

func finishLoad(kind, source string, table *state.Table, err error, start time.Time) (*state.Snapshot, error) {
	if kind == "" {
		kind = "csv"
	}
	if err != nil {
		metrics.DatasetLoads.WithLabelValues(kind, "error").Inc()
		return nil, err
	}

	metrics.DatasetLoads.WithLabelValues(kind, "ok").Inc()
	logging.Info().
		Str("source", source).
		Int("rows", table.Len()).
		Int("columns", len(table.Columns())).
		Int("stations", len(table.Stations())).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset loaded")

	return &state.Snapshot{Table: table, Source: source, LoadedAt: time.Now()}, nil
}
