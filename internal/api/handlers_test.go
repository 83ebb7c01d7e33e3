package api

import (
	"airquality-go/internal/analysis"
	"airquality-go/internal/config"
	"airquality-go/internal/models"
	"airquality-go/internal/service"
	"airquality-go/internal/state"
	"bytes"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/xuri/excelize/v2"
)

const csvHeader = "No,year,month,day,hour,PM2.5,PM10,SO2,NO2,CO,O3,TEMP,PRES,DEWP,RAIN,wd,WSPM,station\n"

// datasetCSV renders hours rows per station with a daily PM10 cycle.
func datasetCSV(hours int, stations ...string) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	n := 0
	for _, s := range stations {
		for i := 0; i < hours; i++ {
			n++
			pm10 := 80 + 20*math.Sin(2*math.Pi*float64(i)/24)
			fmt.Fprintf(&b, "%d,2014,%d,%d,%d,%.2f,%.2f,%d,%d,%d,%d,%d,%d,%d,0,%s,1.5,%s\n",
				n, 1+(i/96)%12, 1+(i/24)%28, i%24, pm10*0.6, pm10, 5+i%4, 30+i%7, 800+i%9, 60-i%11, i%25, 1010+i%3, i%6-3,
				[]string{"N", "E", "S", "W"}[i%4], s)
		}
	}
	return b.String()
}

func newTestServer(t *testing.T, csv string) (*Handler, http.Handler) {
	t.Helper()

	store := state.NewStore(nil)
	if csv != "" {
		tbl, err := analysis.NewCSVService().LoadReader(strings.NewReader(csv), "test.csv")
		if err != nil {
			t.Fatal(err)
		}
		store.Replace(&state.Snapshot{Table: tbl, Source: "test.csv", LoadedAt: time.Now()})
	}

	h := NewHandler(store, service.NewDashboard(service.DefaultDashboardConfig()), analysis.NewCSVService(), config.ServerConfig{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 10 << 20,
		CORSOrigins:    []string{"http://localhost:3000"},
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndStatus(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(48, "Dongsi", "Tiantan"))

	if rec := get(t, srv, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}

	rec := get(t, srv, "/api/status")
	status := decode[models.StatusResponse](t, rec)
	if !status.Loaded || status.Rows != 96 || status.Source != "test.csv" {
		t.Errorf("status = %+v", status)
	}
	if len(status.Stations) != 2 || status.Stations[0] != "Dongsi" {
		t.Errorf("stations = %v", status.Stations)
	}
}

func TestNoDatasetIsUnavailable(t *testing.T) {
	_, srv := newTestServer(t, "")

	if rec := get(t, srv, "/api/summary"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("summary without dataset = %d, want 503", rec.Code)
	}
	status := decode[models.StatusResponse](t, get(t, srv, "/api/status"))
	if status.Loaded {
		t.Error("status reports a dataset")
	}
}

func TestColumns(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(2, "Dongsi"))
	resp := decode[models.ColumnsResponse](t, get(t, srv, "/api/columns"))
	if len(resp.Columns) != len(state.AllColumns) {
		t.Fatalf("got %d columns", len(resp.Columns))
	}
	for _, c := range resp.Columns {
		if c.Name == "PM2.5" && (!c.Pollutant || !c.Required || c.Kind != "measure") {
			t.Errorf("PM2.5 info = %+v", c)
		}
	}
}

func TestSummaryUnknownStationIsEmpty(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(24, "Dongsi"))

	rec := get(t, srv, "/api/summary?station=Atlantis")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[models.SummaryResponse](t, rec)
	if resp.Rows != 0 {
		t.Errorf("rows = %d, want 0", resp.Rows)
	}
	if !strings.Contains(rec.Body.String(), `"mean":null`) {
		t.Errorf("empty summary should encode missing statistics as null: %s", rec.Body.String())
	}
}

func TestCorrelationRoute(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(48, "Dongsi"))

	rec := get(t, srv, "/api/correlation?station=Dongsi&columns=PM10,PM2.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.CorrelationResponse](t, rec)
	if len(resp.Matrix) != 2 || resp.Matrix[0][0].Float() != 1 {
		t.Errorf("matrix = %v", resp.Matrix)
	}
	if len(resp.Cells) != 1 || resp.Cells[0].Interpretation != "Strong positive" {
		t.Errorf("cells = %+v", resp.Cells)
	}

	rec = get(t, srv, "/api/correlation?columns=PM10,pm25")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "pm25") {
		t.Errorf("unknown column: %d %s", rec.Code, rec.Body.String())
	}

	rec = get(t, srv, "/api/correlation?columns=PM10,wd")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("categorical column: %d", rec.Code)
	}
}

func TestGroupRoute(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(48, "Dongsi"))

	resp := decode[models.GroupResponse](t, get(t, srv, "/api/group?key=hour&value=PM10&fill=true"))
	if len(resp.Entries) != 24 || resp.Entries[0].Key != "0" || resp.Entries[23].Key != "23" || !resp.Filled {
		t.Errorf("group = %+v", resp)
	}

	if rec := get(t, srv, "/api/group?key=PM10"); rec.Code != http.StatusBadRequest {
		t.Errorf("measure key = %d, want 400", rec.Code)
	}
}

func TestDecompositionRoute(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(72, "Dongsi"))

	rec := get(t, srv, "/api/decomposition?station=Dongsi&column=PM10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.DecompositionResponse](t, rec)
	if resp.Period != 24 || len(resp.Trend) != 72 {
		t.Fatalf("decomposition = period %d, %d points", resp.Period, len(resp.Trend))
	}
	if !strings.Contains(rec.Body.String(), `"trend":[null,`) {
		t.Error("undefined trend values should encode as null")
	}
	if v := resp.Trend[36].Float(); math.IsNaN(v) || v < 60 || v > 100 {
		t.Errorf("trend[36] = %v", v)
	}

	rec = get(t, srv, "/api/decomposition?station=Dongsi&period=48")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("too-long period = %d, want 422", rec.Code)
	}
	if rec = get(t, srv, "/api/decomposition?period=0"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero period = %d, want 422", rec.Code)
	}
}

func TestScatterAndDistribution(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(48, "Dongsi"))

	scatter := decode[models.ScatterResponse](t, get(t, srv, "/api/scatter?station=Dongsi"))
	if scatter.X != "TEMP" || scatter.Y != "O3" || len(scatter.Points) != 48 {
		t.Errorf("scatter = %s/%s %d points", scatter.X, scatter.Y, len(scatter.Points))
	}

	dist := decode[models.DistributionResponse](t, get(t, srv, "/api/distribution?station=Dongsi&column=NO2"))
	if dist.Key != "month" || len(dist.Boxes) != 1 || dist.Boxes[0].Count != 48 {
		t.Errorf("distribution = %+v", dist)
	}
}

func TestDashboardRoute(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(72, "Dongsi", "Tiantan"))

	rec := get(t, srv, "/api/dashboard?station=Tiantan&pollutant=NO2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.DashboardResponse](t, rec)
	if resp.Station != "Tiantan" || len(resp.Panels) != len(service.PanelOrder) {
		t.Fatalf("dashboard = %s with %d panels", resp.Station, len(resp.Panels))
	}
	for _, p := range resp.Panels {
		if p.Status != "ok" {
			t.Errorf("panel %s: %s", p.Name, p.Notice)
		}
	}

	defaults := decode[models.DashboardResponse](t, get(t, srv, "/api/dashboard"))
	if defaults.Station != "Dongsi" || defaults.Pollutant != "PM10" {
		t.Errorf("defaults = %s/%s", defaults.Station, defaults.Pollutant)
	}

	if rec := get(t, srv, "/api/dashboard?station=Atlantis"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown station = %d, want 400", rec.Code)
	}
	rec = get(t, srv, "/api/dashboard?pollutant=TEMP")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"fields"`) {
		t.Errorf("non-pollutant = %d %s", rec.Code, rec.Body.String())
	}
}

func TestDashboardShortStationHasNotice(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(30, "Dongsi"))

	resp := decode[models.DashboardResponse](t, get(t, srv, "/api/dashboard"))
	for _, p := range resp.Panels {
		if p.Name == service.PanelDecomposition {
			if p.Status != "notice" || p.Reason != "insufficient_data" {
				t.Errorf("decomposition panel = %+v", p)
			}
		} else if p.Status != "ok" {
			t.Errorf("panel %s: %s", p.Name, p.Notice)
		}
	}
}

func TestExportWorkbook(t *testing.T) {
	_, srv := newTestServer(t, datasetCSV(30, "Dongsi"))

	rec := get(t, srv, "/api/export?station=Dongsi&pollutant=PM2.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "airquality_Dongsi_PM2_5.xlsx") {
		t.Errorf("content disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Summary", "Correlation", "Monthly Trend", "Distribution", "Hourly Average", "Wind Direction", "Interactive Correlation", "Notices"}
	if strings.Join(sheets, ",") != strings.Join(want, ",") {
		t.Errorf("sheets = %v, want %v", sheets, want)
	}

	header, err := f.GetCellValue("Summary", "A1")
	if err != nil || header != "Column" {
		t.Errorf("Summary!A1 = %q, %v", header, err)
	}
	reason, _ := f.GetCellValue("Notices", "B2")
	if reason != "insufficient_data" {
		t.Errorf("Notices!B2 = %q", reason)
	}
}

// ============================================================================
// Upload
// ============================================================================

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()
	return body, mw.FormDataContentType()
}

func upload(t *testing.T, srv http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartCSV(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestUploadReplacesDataset(t *testing.T) {
	h, srv := newTestServer(t, datasetCSV(24, "Dongsi"))

	rec := upload(t, srv, "new.csv", datasetCSV(10, "Shunyi", "Wanliu"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.UploadResponse](t, rec)
	if resp.Rows != 20 || len(resp.Stations) != 2 {
		t.Errorf("upload = %+v", resp)
	}
	if snap := h.Store.Current(); snap.Source != "new.csv" || snap.Table.Len() != 20 {
		t.Errorf("store holds %s with %d rows", snap.Source, snap.Table.Len())
	}
}

func TestUploadFailureKeepsPreviousDataset(t *testing.T) {
	h, srv := newTestServer(t, datasetCSV(24, "Dongsi"))

	rec := upload(t, srv, "broken.csv", "station,PM10\nDongsi,3\n")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "missing required columns") {
		t.Errorf("broken upload = %d %s", rec.Code, rec.Body.String())
	}
	if rec := upload(t, srv, "data.txt", datasetCSV(2, "Dongsi")); rec.Code != http.StatusBadRequest {
		t.Errorf("non-csv upload = %d", rec.Code)
	}
	if snap := h.Store.Current(); snap.Source != "test.csv" || snap.Table.Len() != 24 {
		t.Errorf("previous snapshot replaced: %s with %d rows", snap.Source, snap.Table.Len())
	}
}

// ============================================================================
// Websocket
// ============================================================================

func TestDashboardSocket(t *testing.T) {
	_, router := newTestServer(t, datasetCSV(48, "Dongsi", "Tiantan"))
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dashboard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	send := func(msg ClientMessage) {
		t.Helper()
		data, _ := json.Marshal(msg)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatal(err)
		}
	}
	read := func() ServerMessage {
		t.Helper()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		return msg
	}

	send(ClientMessage{Type: MessageTypePing})
	if msg := read(); msg.Type != MessageTypePong || msg.SessionID == "" {
		t.Errorf("ping reply = %+v", msg)
	}

	send(ClientMessage{Type: MessageTypeSelect, Selection: &service.Selection{Station: "Tiantan", Pollutant: state.ColSO2}})
	msg := read()
	if msg.Type != MessageTypeDashboard || msg.Dashboard == nil {
		t.Fatalf("reply = %+v", msg)
	}
	if msg.Dashboard.Station != "Tiantan" || len(msg.Dashboard.Panels) != len(service.PanelOrder) {
		t.Errorf("dashboard = %s with %d panels", msg.Dashboard.Station, len(msg.Dashboard.Panels))
	}

	send(ClientMessage{Type: MessageTypeSelect, Selection: &service.Selection{Station: "Atlantis", Pollutant: state.ColSO2}})
	if msg := read(); msg.Type != MessageTypeError || msg.Error == nil {
		t.Errorf("unknown station reply = %+v", msg)
	}
}

func TestSessionDropsSupersededSelection(t *testing.T) {
	h, _ := newTestServer(t, datasetCSV(48, "Dongsi", "Tiantan"))
	s := newSession(h, nil)

	s.submit(service.Selection{Station: "Dongsi", Pollutant: state.ColPM10})
	stale := <-s.pending
	// a newer selection lands after the older one was dequeued but before it ran
	s.submit(service.Selection{Station: "Tiantan", Pollutant: state.ColPM10})

	s.run(stale)
	if n := len(s.send); n != 0 {
		t.Fatalf("superseded selection pushed %d messages", n)
	}

	s.run(<-s.pending)
	select {
	case msg := <-s.send:
		if msg.Type != MessageTypeDashboard || msg.Dashboard.Station != "Tiantan" {
			t.Errorf("message = %+v, want Tiantan dashboard", msg)
		}
	default:
		t.Fatal("latest selection was not answered")
	}
}

func TestSessionSubmitKeepsOnlyLatest(t *testing.T) {
	h, _ := newTestServer(t, "")
	s := newSession(h, nil)

	s.submit(service.Selection{Station: "Dongsi", Pollutant: state.ColPM10})
	s.submit(service.Selection{Station: "Tiantan", Pollutant: state.ColPM10})

	req := <-s.pending
	if req.selection.Station != "Tiantan" || !s.current(req.gen) {
		t.Errorf("pending = %+v, want the latest selection", req)
	}
	if len(s.pending) != 0 {
		t.Error("older selection still queued")
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	h, _ := newTestServer(t, "")

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://localhost:3000", true},
		{"http://evil.test", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/ws/dashboard", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkWebSocketOrigin(req); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}
