package api

import (
	"airquality-go/internal/analysis"
	"airquality-go/internal/config"
	"airquality-go/internal/metrics"
	"airquality-go/internal/models"
	"airquality-go/internal/service"
	"airquality-go/internal/state"
	"airquality-go/internal/validation"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	UploadDir   = "./uploads"
	MaxFileSize = 100 * 1024 * 1024 // 100MB
)

type Handler struct {
	Store      *state.Store
	Dashboard  *service.Dashboard
	CSVService *analysis.CSVService
	Profiler   *service.DataQualityProfiler

	uploadDir      string
	maxUploadBytes int64
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewHandler(store *state.Store, dashboard *service.Dashboard, csv *analysis.CSVService, cfg config.ServerConfig) *Handler {
	h := &Handler{
		Store:          store,
		Dashboard:      dashboard,
		CSVService:     csv,
		Profiler:       service.NewDataQualityProfiler(),
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		allowedOrigins: cfg.CORSOrigins,
	}
	if h.uploadDir == "" {
		h.uploadDir = UploadDir
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = MaxFileSize
	}
	h.upgrader = h.getUpgrader()
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/stations", h.GetStations)
		r.Get("/columns", h.GetColumns)
		r.Post("/upload", h.Upload)

		r.Get("/summary", h.GetSummary)
		r.Get("/quality", h.GetQuality)
		r.Get("/correlation", h.GetCorrelation)
		r.Get("/group", h.GetGroup)
		r.Get("/decomposition", h.GetDecomposition)
		r.Get("/distribution", h.GetDistribution)
		r.Get("/scatter", h.GetScatter)

		r.Get("/dashboard", h.GetDashboard)
		r.Get("/export", h.Export)
	})

	r.Get("/ws/dashboard", h.DashboardSocket)
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}

// ============================================================================
// Upload
// ============================================================================

// Upload replaces the active dataset with a CSV sent as multipart field
// "file". A file that fails to load leaves the previous snapshot in place.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file too large or malformed form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file uploaded"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, errors.New("only CSV files are allowed"))
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to save file"))
		return
	}

	filePath := filepath.Join(h.uploadDir, uuid.NewString()+"_"+filepath.Base(header.Filename))
	if err := saveUpload(filePath, file); err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to save file"))
		return
	}

	table, err := h.loadUpload(filePath, header.Filename)
	snap, err := analysis.Snapshot("upload", header.Filename, table, err)
	if err != nil {
		os.Remove(filePath)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.Store.Replace(snap)
	metrics.DatasetRows.Set(float64(snap.Table.Len()))

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Message:     fmt.Sprintf("File '%s' uploaded successfully", header.Filename),
		Rows:        snap.Table.Len(),
		Columns:     len(snap.Table.Columns()),
		ColumnNames: columnNames(snap.Table.Columns()),
		Stations:    nonNil(snap.Table.Stations()),
	})
}

// loadUpload parses a saved upload, naming it by its original filename.
func (h *Handler) loadUpload(path, name string) (*state.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &analysis.LoadError{Source: name, Err: err}
	}
	defer f.Close()
	return h.CSVService.LoadReader(f, name)
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

// ============================================================================
// Status
// ============================================================================

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.Store.Current()
	if snap == nil {
		writeJSON(w, http.StatusOK, models.StatusResponse{Columns: []string{}, Stations: []string{}})
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{
		Loaded:   true,
		Source:   snap.Source,
		Rows:     snap.Table.Len(),
		Columns:  columnNames(snap.Table.Columns()),
		Stations: nonNil(snap.Table.Stations()),
		LoadedAt: snap.LoadedAt,
	})
}

func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.StationsResponse{Stations: nonNil(t.Stations())})
}

func (h *Handler) GetColumns(w http.ResponseWriter, r *http.Request) {
	t := h.Store.Table()

	required := make(map[state.Column]bool, len(state.RequiredColumns))
	for _, c := range state.RequiredColumns {
		required[c] = true
	}

	resp := models.ColumnsResponse{Columns: make([]models.ColumnInfo, 0, len(state.AllColumns))}
	for _, c := range state.AllColumns {
		resp.Columns = append(resp.Columns, models.ColumnInfo{
			Name:      string(c),
			Kind:      c.Kind().String(),
			Required:  required[c],
			Present:   t != nil && t.Has(c),
			Pollutant: c.IsPollutant(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Summary & Quality
// ============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.SummaryResponse{
		Station: station,
		Rows:    t.Len(),
		Columns: toSummaries(service.Describe(t)),
	})
}

func (h *Handler) GetQuality(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.QualityResponse{
		Station: station,
		Columns: toQuality(h.Profiler.ProfileAllColumns(t)),
	})
}

// ============================================================================
// Correlation
// ============================================================================

func (h *Handler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}

	columns, err := state.ParseColumns(r.URL.Query().Get("columns"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(columns) == 0 {
		columns = h.Dashboard.Config().CorrelationColumns
	}

	m, err := service.Correlate(t, columns)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := toCorrelation(m)
	resp.Station = station
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Grouping
// ============================================================================

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}

	key, err := columnParam(r, "key", state.ColMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	value, err := columnParam(r, "value", h.Dashboard.Config().FocusColumn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fill := getBoolParam(r, "fill", false)

	var g service.GroupedSeries
	if fill {
		g, err = service.FilledGroupMean(t, key, value)
	} else {
		g, err = service.GroupMean(t, key, value)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := toGroup(g)
	resp.Station = station
	resp.Filled = fill
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Decomposition
// ============================================================================

func (h *Handler) GetDecomposition(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}

	column, err := columnParam(r, "column", h.Dashboard.Config().FocusColumn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	period := getIntParam(r, "period", h.Dashboard.Config().Period)

	d, err := service.DecomposeColumn(t, column, period)
	if err != nil {
		metrics.RecordTransformFailure(service.PanelDecomposition, service.FailureReason(err))
		writeError(w, statusFor(err), err)
		return
	}

	resp := toDecomposition(d)
	resp.Station = station
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Distribution & Scatter
// ============================================================================

func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}

	column, err := columnParam(r, "column", h.Dashboard.Config().FocusColumn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	boxes, err := service.Distribution(t, state.ColMonth, column)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, models.DistributionResponse{
		Station: station,
		Key:     string(state.ColMonth),
		Column:  string(column),
		Boxes:   toBoxes(boxes),
	})
}

func (h *Handler) GetScatter(w http.ResponseWriter, r *http.Request) {
	t, station, ok := h.scoped(w, r)
	if !ok {
		return
	}

	x, err := columnParam(r, "x", state.ColTemp)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	y, err := columnParam(r, "y", state.ColO3)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	points, err := service.Pairs(t, x, y)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, models.ScatterResponse{
		Station: station,
		X:       string(x),
		Y:       string(y),
		Points:  toPoints(points),
	})
}

// ============================================================================
// Dashboard
// ============================================================================

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	report, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toDashboard(report))
}

// buildReport reads a selection from the query string and computes the
// dashboard for it, writing the error response itself on failure.
func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (*service.Report, bool) {
	t, ok := h.table(w)
	if !ok {
		return nil, false
	}

	sel, err := selectionFromQuery(r, t)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}

	report, err := h.Dashboard.Build(r.Context(), t, sel)
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return report, true
}

// selectionFromQuery defaults to the first station and PM10, the initial
// state of the dashboard selectors.
func selectionFromQuery(r *http.Request, t *state.Table) (service.Selection, error) {
	q := r.URL.Query()

	sel := service.Selection{
		Station:   q.Get("station"),
		Pollutant: state.Column(q.Get("pollutant")),
	}
	if sel.Station == "" {
		if stations := t.Stations(); len(stations) > 0 {
			sel.Station = stations[0]
		}
	}
	if sel.Pollutant == "" {
		sel.Pollutant = state.ColPM10
	}

	columns, err := state.ParseColumns(q.Get("columns"))
	if err != nil {
		return sel, err
	}
	sel.Columns = columns
	return sel, nil
}

// ============================================================================
// Helpers
// ============================================================================

// table returns the active table or answers 503 when nothing is loaded.
func (h *Handler) table(w http.ResponseWriter) (*state.Table, bool) {
	t := h.Store.Table()
	if t == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no dataset loaded"))
		return nil, false
	}
	return t, true
}

// scoped returns the active table narrowed to the "station" query parameter,
// if one was given. An unknown station yields an empty table.
func (h *Handler) scoped(w http.ResponseWriter, r *http.Request) (*state.Table, string, bool) {
	t, ok := h.table(w)
	if !ok {
		return nil, "", false
	}
	station := r.URL.Query().Get("station")
	if station == "" {
		return t, "", true
	}
	return service.FilterStation(t, station), station, true
}

func columnParam(r *http.Request, name string, defaultVal state.Column) (state.Column, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	return state.ParseColumn(raw)
}

func getIntParam(r *http.Request, name string, defaultVal int) int {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getBoolParam(r *http.Request, name string, defaultVal bool) bool {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// statusFor maps transform and validation errors to HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr       *validation.RequestError
		unknown      *state.UnknownColumnError
		kind         *state.ColumnKindError
		missing      *state.MissingColumnError
		station      *service.UnknownStationError
		insufficient *service.InsufficientDataError
		invalid      *service.InvalidInputError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &unknown), errors.As(err, &kind),
		errors.As(err, &missing), errors.As(err, &station):
		return http.StatusBadRequest
	case errors.As(err, &insufficient), errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := models.ErrorResponse{Error: err.Error()}
	var reqErr *validation.RequestError
	if errors.As(err, &reqErr) {
		resp.Fields = reqErr.Fields
	}
	writeJSON(w, status, resp)
}

func columnNames(cols []state.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = string(c)
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
