package service

import (
	"context"
	"fmt"
	"time"

	"airquality-go/internal/config"
	"airquality-go/internal/logging"
	"airquality-go/internal/metrics"
	"airquality-go/internal/state"
	"airquality-go/internal/validation"
)

// Panel names, in the order a Report lists them.
const (
	PanelSummary                = "summary"
	PanelCorrelation            = "correlation"
	PanelMonthlyTrend           = "monthly_trend"
	PanelDailyLevels            = "daily_levels"
	PanelDistribution           = "distribution"
	PanelDecomposition          = "decomposition"
	PanelHourlyAverage          = "hourly_average"
	PanelWindDirection          = "wind_direction"
	PanelTemperatureOzone       = "temperature_ozone"
	PanelInteractiveCorrelation = "interactive_correlation"
)

// PanelOrder lists every panel name in report order.
var PanelOrder = []string{
	PanelSummary,
	PanelCorrelation,
	PanelMonthlyTrend,
	PanelDailyLevels,
	PanelDistribution,
	PanelDecomposition,
	PanelHourlyAverage,
	PanelWindDirection,
	PanelTemperatureOzone,
	PanelInteractiveCorrelation,
}

// DashboardConfig fixes the columns and period the panels are computed with.
type DashboardConfig struct {
	FocusColumn        state.Column
	Period             int
	CorrelationColumns []state.Column
	InteractiveColumns []state.Column
}

// DefaultDashboardConfig mirrors the stock dashboard: PM10 as focus, a daily
// cycle on hourly data.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		FocusColumn:        state.ColPM10,
		Period:             24,
		CorrelationColumns: []state.Column{state.ColPM10, state.ColNO2, state.ColSO2, state.ColCO, state.ColO3, state.ColTemp, state.ColPres, state.ColDewp},
		InteractiveColumns: []state.Column{state.ColPM10, state.ColNO2, state.ColPM25, state.ColO3},
	}
}

// NewDashboardConfig converts the analysis section of the configuration,
// rejecting unknown or non-numeric column names.
func NewDashboardConfig(cfg config.AnalysisConfig) (DashboardConfig, error) {
	focus, err := parseNumeric(cfg.FocusColumn)
	if err != nil {
		return DashboardConfig{}, fmt.Errorf("focus column: %w", err)
	}
	corr, err := parseNumericList(cfg.CorrelationColumns)
	if err != nil {
		return DashboardConfig{}, fmt.Errorf("correlation columns: %w", err)
	}
	inter, err := parseNumericList(cfg.InteractiveColumns)
	if err != nil {
		return DashboardConfig{}, fmt.Errorf("interactive columns: %w", err)
	}
	if cfg.DecompositionPeriod < 1 {
		return DashboardConfig{}, &InvalidInputError{Reason: "decomposition period must be positive", Index: -1}
	}
	return DashboardConfig{
		FocusColumn:        focus,
		Period:             cfg.DecompositionPeriod,
		CorrelationColumns: corr,
		InteractiveColumns: inter,
	}, nil
}

func parseNumeric(name string) (state.Column, error) {
	c, err := state.ParseColumn(name)
	if err != nil {
		return "", err
	}
	if err := state.RequireNumeric(c); err != nil {
		return "", err
	}
	return c, nil
}

func parseNumericList(names []string) ([]state.Column, error) {
	cols := make([]state.Column, 0, len(names))
	for _, n := range names {
		c, err := parseNumeric(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Selection is what the user picked on the dashboard.
type Selection struct {
	Station   string         `json:"station" validate:"required"`
	Pollutant state.Column   `json:"pollutant" validate:"required,pollutant"`
	Columns   []state.Column `json:"columns,omitempty" validate:"omitempty,dive,numeric_column"`
}

// Validate checks the selection's fields and that the station has rows in t.
func (s Selection) Validate(t *state.Table) error {
	if err := validation.Struct(s); err != nil {
		return err
	}
	if !t.HasStation(s.Station) {
		return &UnknownStationError{Station: s.Station}
	}
	return nil
}

// Panel is the outcome of one dashboard computation. Exactly one of Data
// (when OK) or Notice is meaningful.
type Panel struct {
	Name   string
	OK     bool
	Data   any
	Notice string
	Reason string
}

// Report is the full panel sequence for one selection.
type Report struct {
	Selection Selection
	Panels    []Panel
}

// Panel returns the panel with the given name.
func (r *Report) Panel(name string) (Panel, bool) {
	for _, p := range r.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return Panel{}, false
}

// DecompositionPanel is the decomposition panel payload: the decomposed
// series plus how many samples forward-fill had to supply.
type DecompositionPanel struct {
	Column     state.Column
	Filled     int
	Components *Decomposition
}

// Dashboard computes the fixed panel sequence.
type Dashboard struct {
	cfg DashboardConfig
}

// NewDashboard creates a dashboard with the given column and period settings.
func NewDashboard(cfg DashboardConfig) *Dashboard {
	return &Dashboard{cfg: cfg}
}

// Config returns the dashboard's settings.
func (d *Dashboard) Config() DashboardConfig {
	return d.cfg
}

// Build validates sel against t and computes every panel. A failing panel
// becomes a notice and never stops the others. Build stops between panels
// once ctx is done.
func (d *Dashboard) Build(ctx context.Context, t *state.Table, sel Selection) (*Report, error) {
	if err := sel.Validate(t); err != nil {
		return nil, err
	}

	filtered := FilterStation(t, sel.Station)
	focus := d.cfg.FocusColumn
	interactive := sel.Columns
	if len(interactive) == 0 {
		interactive = d.cfg.InteractiveColumns
	}

	steps := []struct {
		name string
		fn   func() (any, error)
	}{
		{PanelSummary, func() (any, error) {
			return Describe(filtered), nil
		}},
		{PanelCorrelation, func() (any, error) {
			return Correlate(filtered, d.cfg.CorrelationColumns)
		}},
		{PanelMonthlyTrend, func() (any, error) {
			return GroupMean(t, state.ColMonth, focus)
		}},
		{PanelDailyLevels, func() (any, error) {
			return Pairs(filtered, state.ColDay, focus)
		}},
		{PanelDistribution, func() (any, error) {
			return Distribution(filtered, state.ColMonth, sel.Pollutant)
		}},
		{PanelDecomposition, func() (any, error) {
			return DecomposeColumn(filtered, focus, d.cfg.Period)
		}},
		{PanelHourlyAverage, func() (any, error) {
			return FilledGroupMean(t, state.ColHour, focus)
		}},
		{PanelWindDirection, func() (any, error) {
			return GroupMean(filtered, state.ColWindDirection, focus)
		}},
		{PanelTemperatureOzone, func() (any, error) {
			return Pairs(filtered, state.ColTemp, state.ColO3)
		}},
		{PanelInteractiveCorrelation, func() (any, error) {
			return Correlate(t, interactive)
		}},
	}

	report := &Report{Selection: sel, Panels: make([]Panel, 0, len(steps))}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Panels = append(report.Panels, runPanel(step.name, sel, step.fn))
	}
	return report, nil
}

// DecomposeColumn forward-fills column of t and decomposes it with period.
func DecomposeColumn(t *state.Table, column state.Column, period int) (*DecompositionPanel, error) {
	values, err := t.Values(column)
	if err != nil {
		return nil, err
	}
	filled := ForwardFill(values)
	dec, err := Decompose(filled, period)
	if err != nil {
		return nil, err
	}
	return &DecompositionPanel{
		Column:     column,
		Filled:     CountMissing(values) - CountMissing(filled),
		Components: dec,
	}, nil
}

// FilledGroupMean forward-fills value before grouping it by key.
func FilledGroupMean(t *state.Table, key, value state.Column) (GroupedSeries, error) {
	keys, err := t.Keys(key)
	if err != nil {
		return GroupedSeries{}, err
	}
	values, err := t.Values(value)
	if err != nil {
		return GroupedSeries{}, err
	}
	return GroupMeanValues(key, value, keys, ForwardFill(values))
}

func runPanel(name string, sel Selection, fn func() (any, error)) Panel {
	start := time.Now()
	data, err := fn()
	metrics.ObserveTransform(name, start)
	if err != nil {
		reason := FailureReason(err)
		metrics.RecordTransformFailure(name, reason)
		logging.Warn().
			Err(err).
			Str("panel", name).
			Str("reason", reason).
			Str("station", sel.Station).
			Msg("Dashboard panel produced a notice")
		return Panel{Name: name, Notice: err.Error(), Reason: reason}
	}
	return Panel{Name: name, OK: true, Data: data}
}
