package api

import (
	"airquality-go/internal/service"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export returns the tabular dashboard panels for a selection as an XLSX workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	report, ok := h.buildReport(w, r)
	if !ok {
		return
	}

	f, err := BuildWorkbook(report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("airquality_%s_%s.xlsx", sanitizeFilename(report.Selection.Station), sanitizeFilename(string(report.Selection.Pollutant)))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

// BuildWorkbook writes one sheet per tabular panel. Panels that produced a
// notice are listed on a "Notices" sheet instead.
func BuildWorkbook(report *service.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	first := true
	var notices [][]any

	for _, p := range report.Panels {
		if !p.OK {
			notices = append(notices, []any{p.Name, p.Reason, p.Notice})
			continue
		}
		header, rows := panelRows(p)
		if header == nil {
			continue
		}
		sheet := sheetName(p.Name)
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := writeSheet(f, sheet, header, rows); err != nil {
			return nil, err
		}
	}

	if len(notices) > 0 || first {
		sheet := "Notices"
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := writeSheet(f, sheet, []any{"Panel", "Reason", "Notice"}, notices); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// panelRows flattens a panel payload into a header and rows. A nil header
// means the panel is not tabular.
func panelRows(p service.Panel) ([]any, [][]any) {
	switch v := p.Data.(type) {
	case []service.ColumnSummary:
		rows := make([][]any, len(v))
		for i, s := range v {
			rows[i] = []any{string(s.Column), s.Count, cellValue(s.Mean), cellValue(s.StdDev), cellValue(s.Min),
				cellValue(s.Q25), cellValue(s.Median), cellValue(s.Q75), cellValue(s.Max)}
		}
		return []any{"Column", "Count", "Mean", "Std", "Min", "25%", "50%", "75%", "Max"}, rows

	case service.CorrelationMatrix:
		header := []any{""}
		for _, c := range v.Columns {
			header = append(header, string(c))
		}
		rows := make([][]any, len(v.Values))
		for i, vals := range v.Values {
			row := []any{string(v.Columns[i])}
			for _, r := range vals {
				row = append(row, cellValue(r))
			}
			rows[i] = row
		}
		return header, rows

	case service.GroupedSeries:
		rows := make([][]any, len(v.Entries))
		for i, e := range v.Entries {
			rows[i] = []any{e.Key, cellValue(e.Mean), e.Count}
		}
		return []any{string(v.Key), "Mean " + string(v.Value), "Count"}, rows

	case []service.BoxStats:
		rows := make([][]any, len(v))
		for i, b := range v {
			rows[i] = []any{b.Key, b.Count, cellValue(b.LowerWhisker), cellValue(b.Q1), cellValue(b.Median),
				cellValue(b.Q3), cellValue(b.UpperWhisker), len(b.Outliers)}
		}
		return []any{"Key", "Count", "Lower whisker", "Q1", "Median", "Q3", "Upper whisker", "Outliers"}, rows
	}
	return nil, nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 16)
}

// cellValue leaves missing values as empty cells.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// sheetName turns a panel name into a sheet title, e.g. "monthly_trend" -> "Monthly Trend".
func sheetName(panel string) string {
	words := strings.Split(panel, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	name := strings.Join(words, " ")
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == '.':
			return '_'
		}
		return -1
	}, s)
}
