package analysis

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"airquality-go/internal/config"
	"airquality-go/internal/service"
	"airquality-go/internal/state"
)

const header = "No,year,month,day,hour,PM2.5,PM10,SO2,NO2,CO,O3,TEMP,PRES,DEWP,RAIN,wd,WSPM,station\n"

const sampleCSV = header +
	"1,2013,3,1,0,4,4,4,7,300,77,-0.7,1023,-18.8,0,NNW,4.4,Aotizhongxin\n" +
	"2,2013,3,1,1,8,NA,4,7,300,77,-1.1,1023.2,-18.2,0,N,4.7,Aotizhongxin\n" +
	"3,2013,3,1,0,,12,,,,,2,1020,-10,0,E,1.1,Dongsi\n"

func TestLoadReader(t *testing.T) {
	tbl, err := NewCSVService().LoadReader(strings.NewReader(sampleCSV), "sample.csv")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("rows = %d, want 3", tbl.Len())
	}
	if got := tbl.Stations(); len(got) != 2 || got[0] != "Aotizhongxin" || got[1] != "Dongsi" {
		t.Errorf("stations = %v", got)
	}
	if !tbl.Has(state.ColRain) || !tbl.Has(state.ColYear) {
		t.Error("optional columns should be present when in the header")
	}

	pm10, _ := tbl.Values(state.ColPM10)
	if pm10[0] != 4 || !math.IsNaN(pm10[1]) || pm10[2] != 12 {
		t.Errorf("PM10 = %v, want [4 NaN 12]", pm10)
	}
	so2, _ := tbl.Values(state.ColSO2)
	if !math.IsNaN(so2[2]) {
		t.Errorf("empty SO2 cell = %v, want NaN", so2[2])
	}

	r := tbl.Record(1)
	if r.Year != 2013 || r.Month != 3 || r.Hour != 1 || r.WindDirection != "N" {
		t.Errorf("record = %+v", r)
	}
}

func TestLoadReaderMissingWindDirection(t *testing.T) {
	csv := "station,month,day,hour,PM10,PM2.5,SO2,NO2,CO,O3,TEMP,PRES,DEWP,wd\n" +
		"Dongsi,1,1,0,10,5,1,1,1,1,1,1,1,N\n" +
		"Dongsi,1,1,1,90,5,1,1,1,1,1,1,1,NA\n" +
		"Dongsi,1,1,2,30,5,1,1,1,1,1,1,1,N\n"
	tbl, err := NewCSVService().LoadReader(strings.NewReader(csv), "wd.csv")
	if err != nil {
		t.Fatal(err)
	}
	if wd := tbl.Record(1).WindDirection; wd != "" {
		t.Fatalf("wd of NA cell = %q, want missing", wd)
	}

	g, err := service.GroupMean(tbl, state.ColWindDirection, state.ColPM10)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Entries) != 1 || g.Entries[0].Key != "N" || g.Entries[0].Mean != 20 {
		t.Errorf("entries = %+v, want only N with mean 20", g.Entries)
	}

	p, err := service.NewDataQualityProfiler().ProfileColumn(tbl, state.ColWindDirection)
	if err != nil {
		t.Fatal(err)
	}
	if p.NonNullRows != 2 || p.DistinctCount != 1 || math.Abs(p.NullRate-1.0/3) > 1e-9 {
		t.Errorf("wd profile = %+v, want 2 present values and null rate 1/3", p)
	}
}

func TestLoadReaderOptionalColumnsAbsent(t *testing.T) {
	csv := "station,month,day,hour,PM10,PM2.5,SO2,NO2,CO,O3,TEMP,PRES,DEWP,wd\n" +
		"Dongsi,1,1,0,10,5,1,1,1,1,1,1,1,N\n"
	tbl, err := NewCSVService().LoadReader(strings.NewReader(csv), "minimal.csv")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Has(state.ColRain) || tbl.Has(state.ColYear) {
		t.Error("absent optional columns reported as present")
	}
	if _, err := tbl.Values(state.ColWindSpeed); err == nil {
		t.Error("expected MissingColumnError for WSPM")
	}
}

func TestLoadReaderErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		contains string
	}{
		{"empty", "", 1, "empty input"},
		{"missing required", "station,month,day,hour,PM10\nDongsi,1,1,0,3\n", 1, "missing required columns"},
		{"malformed month", header + "1,2013,March,1,0,4,4,4,7,300,77,-0.7,1023,-18.8,0,NNW,4.4,Dongsi\n", 2, "month"},
		{"fractional hour", header + "1,2013,3,1,0.5,4,4,4,7,300,77,-0.7,1023,-18.8,0,NNW,4.4,Dongsi\n", 2, "hour"},
		{"ragged row", header + "1,2013,3\n", 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVService().LoadReader(strings.NewReader(tt.input), "bad.csv")
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("got %v, want LoadError", err)
			}
			if loadErr.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", loadErr.Line, tt.wantLine)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := NewCSVService().LoadFile(filepath.Join(t.TempDir(), "absent.csv"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("got %v, want LoadError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadError should wrap the open failure, got %v", loadErr.Err)
	}
}

func TestLoadFromConfigCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := Load(context.Background(), config.DataConfig{Driver: "csv", Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Source != path || snap.Table.Len() != 3 || snap.LoadedAt.IsZero() {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLoadUnsupportedDriver(t *testing.T) {
	_, err := Load(context.Background(), config.DataConfig{Driver: "oracle"})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("got %v, want LoadError", err)
	}
}

// ============================================================================
// SQL source
// ============================================================================

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE air_quality (
			station TEXT, year INTEGER, month INTEGER, day INTEGER, hour INTEGER,
			"PM2.5" REAL, PM10 REAL, SO2 REAL, NO2 REAL, CO REAL, O3 REAL,
			TEMP REAL, PRES REAL, DEWP REAL, wd TEXT
		)`,
		`INSERT INTO air_quality VALUES ('Tiantan', 2015, 6, 2, 13, 35.5, 60, 3, 20, 500, 150, 28.5, 1001, 12, 'SE')`,
		`INSERT INTO air_quality VALUES ('Tiantan', 2015, 6, 2, 14, NULL, 70, 3, 22, 500, 160, 29.1, 1001, 12, 'S')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return db
}

func TestSQLSourceLoadTable(t *testing.T) {
	src := NewSQLSource("sqlite3", openMemoryDB(t))

	tables, err := src.ListTables(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 || tables[0] != "air_quality" {
		t.Errorf("tables = %v", tables)
	}

	tbl, err := src.LoadTable(context.Background(), "air_quality")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	pm25, _ := tbl.Values(state.ColPM25)
	if pm25[0] != 35.5 || !math.IsNaN(pm25[1]) {
		t.Errorf("PM2.5 = %v, want [35.5 NaN]", pm25)
	}
	if r := tbl.Record(1); r.Hour != 14 || r.WindDirection != "S" || r.Temp != 29.1 {
		t.Errorf("record = %+v", r)
	}
}

func TestSQLSourceRejectsInjectedTableName(t *testing.T) {
	src := NewSQLSource("sqlite3", openMemoryDB(t))
	_, err := src.LoadTable(context.Background(), "air_quality; DROP TABLE air_quality")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("got %v, want LoadError", err)
	}
	if _, err := src.LoadTable(context.Background(), "air_quality"); err != nil {
		t.Errorf("table should still load: %v", err)
	}
}
