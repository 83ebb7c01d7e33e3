package models

import (
	"time"

	"airquality-go/internal/validation"
)

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse describes the active dataset snapshot
type StatusResponse struct {
	Loaded   bool      `json:"loaded"`
	Source   string    `json:"source,omitempty"`
	Rows     int       `json:"rows"`
	Columns  []string  `json:"columns"`
	Stations []string  `json:"stations"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// UploadResponse is returned after a dataset upload replaced the snapshot
type UploadResponse struct {
	Message     string   `json:"message"`
	Rows        int      `json:"rows"`
	Columns     int      `json:"columns"`
	ColumnNames []string `json:"column_names"`
	Stations    []string `json:"stations"`
}

// StationsResponse lists stations in first-appearance order
type StationsResponse struct {
	Stations []string `json:"stations"`
}

// ColumnInfo describes one known column
type ColumnInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Required  bool   `json:"required"`
	Present   bool   `json:"present"`
	Pollutant bool   `json:"pollutant"`
}

// ColumnsResponse is returned by /api/columns
type ColumnsResponse struct {
	Columns []ColumnInfo `json:"columns"`
}

// ColumnSummary is one row of the descriptive statistics table
type ColumnSummary struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
	Mean   Number `json:"mean"`
	Std    Number `json:"std"`
	Min    Number `json:"min"`
	Q25    Number `json:"q25"`
	Median Number `json:"median"`
	Q75    Number `json:"q75"`
	Max    Number `json:"max"`
}

// SummaryResponse is returned by /api/summary
type SummaryResponse struct {
	Station string          `json:"station,omitempty"`
	Rows    int             `json:"rows"`
	Columns []ColumnSummary `json:"columns"`
}

// ColumnQuality reports completeness of one column
type ColumnQuality struct {
	Column        string  `json:"column"`
	TotalRows     int     `json:"total_rows"`
	NonNullRows   int     `json:"non_null_rows"`
	NullRate      float64 `json:"null_rate"`
	LongestGap    int     `json:"longest_gap"`
	DistinctCount int     `json:"distinct_count,omitempty"`
	Entropy       float64 `json:"entropy,omitempty"`
	QualityScore  float64 `json:"quality_score"`
}

// QualityResponse is returned by /api/quality
type QualityResponse struct {
	Station string          `json:"station,omitempty"`
	Columns []ColumnQuality `json:"columns"`
}

// CorrelationResult represents correlation between column pair
type CorrelationResult struct {
	Column1        string `json:"column1"`
	Column2        string `json:"column2"`
	Correlation    Number `json:"correlation"`
	Pairs          int    `json:"pairs"`
	Interpretation string `json:"interpretation"`
}

// CorrelationResponse is a heatmap-ready matrix plus the off-diagonal cells
type CorrelationResponse struct {
	Station string              `json:"station,omitempty"`
	Columns []string            `json:"columns"`
	Matrix  [][]Number          `json:"matrix"`
	Cells   []CorrelationResult `json:"cells"`
}

// GroupEntry is one bar of a grouped chart
type GroupEntry struct {
	Key   string `json:"key"`
	Mean  Number `json:"mean"`
	Count int    `json:"count"`
}

// GroupResponse is returned by /api/group
type GroupResponse struct {
	Station string       `json:"station,omitempty"`
	Key     string       `json:"key"`
	Value   string       `json:"value"`
	Filled  bool         `json:"filled"`
	Entries []GroupEntry `json:"entries"`
}

// DecompositionResponse carries the four aligned component series
type DecompositionResponse struct {
	Station  string   `json:"station,omitempty"`
	Column   string   `json:"column"`
	Period   int      `json:"period"`
	Filled   int      `json:"filled"`
	Observed []Number `json:"observed"`
	Trend    []Number `json:"trend"`
	Seasonal []Number `json:"seasonal"`
	Residual []Number `json:"residual"`
}

// BoxStats is one box of a box plot
type BoxStats struct {
	Key          string   `json:"key"`
	Count        int      `json:"count"`
	Q1           Number   `json:"q1"`
	Median       Number   `json:"median"`
	Q3           Number   `json:"q3"`
	LowerWhisker Number   `json:"lower_whisker"`
	UpperWhisker Number   `json:"upper_whisker"`
	Outliers     []Number `json:"outliers"`
}

// DistributionResponse is returned by /api/distribution
type DistributionResponse struct {
	Station string     `json:"station,omitempty"`
	Key     string     `json:"key"`
	Column  string     `json:"column"`
	Boxes   []BoxStats `json:"boxes"`
}

// Point is one scatter or line point
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScatterResponse is returned by /api/scatter
type ScatterResponse struct {
	Station string  `json:"station,omitempty"`
	X       string  `json:"x"`
	Y       string  `json:"y"`
	Points  []Point `json:"points"`
}

// PanelResponse is one dashboard panel: status "ok" with data, or "notice"
// with a message explaining why the panel is empty
type PanelResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Notice string `json:"notice,omitempty"`
	Reason string `json:"reason,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// DashboardResponse is the full panel sequence for a selection
type DashboardResponse struct {
	Station   string          `json:"station"`
	Pollutant string          `json:"pollutant"`
	Columns   []string        `json:"columns,omitempty"`
	Panels    []PanelResponse `json:"panels"`
}
