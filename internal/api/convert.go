package api

import (
	"airquality-go/internal/models"
	"airquality-go/internal/service"
)

// Conversions from transform results to response bodies. Every float that
// can be missing or undefined goes through models.Number.

func toSummaries(in []service.ColumnSummary) []models.ColumnSummary {
	out := make([]models.ColumnSummary, len(in))
	for i, s := range in {
		out[i] = models.ColumnSummary{
			Column: string(s.Column),
			Count:  s.Count,
			Mean:   models.Number(s.Mean),
			Std:    models.Number(s.StdDev),
			Min:    models.Number(s.Min),
			Q25:    models.Number(s.Q25),
			Median: models.Number(s.Median),
			Q75:    models.Number(s.Q75),
			Max:    models.Number(s.Max),
		}
	}
	return out
}

func toQuality(in []service.DataQualityProfile) []models.ColumnQuality {
	out := make([]models.ColumnQuality, len(in))
	for i, p := range in {
		out[i] = models.ColumnQuality{
			Column:        string(p.Column),
			TotalRows:     p.TotalRows,
			NonNullRows:   p.NonNullRows,
			NullRate:      p.NullRate,
			LongestGap:    p.LongestGap,
			DistinctCount: p.DistinctCount,
			Entropy:       p.Entropy,
			QualityScore:  p.QualityScore,
		}
	}
	return out
}

func toCorrelation(m service.CorrelationMatrix) models.CorrelationResponse {
	resp := models.CorrelationResponse{
		Columns: columnNames(m.Columns),
		Matrix:  make([][]models.Number, len(m.Values)),
		Cells:   []models.CorrelationResult{},
	}
	for i, row := range m.Values {
		resp.Matrix[i] = models.Numbers(row)
		for j := i + 1; j < len(row); j++ {
			resp.Cells = append(resp.Cells, models.CorrelationResult{
				Column1:        string(m.Columns[i]),
				Column2:        string(m.Columns[j]),
				Correlation:    models.Number(row[j]),
				Pairs:          m.Pairs[i][j],
				Interpretation: service.Strength(row[j]),
			})
		}
	}
	return resp
}

func toGroup(g service.GroupedSeries) models.GroupResponse {
	resp := models.GroupResponse{
		Key:     string(g.Key),
		Value:   string(g.Value),
		Entries: make([]models.GroupEntry, len(g.Entries)),
	}
	for i, e := range g.Entries {
		resp.Entries[i] = models.GroupEntry{Key: e.Key, Mean: models.Number(e.Mean), Count: e.Count}
	}
	return resp
}

func toDecomposition(d *service.DecompositionPanel) models.DecompositionResponse {
	c := d.Components
	return models.DecompositionResponse{
		Column:   string(d.Column),
		Period:   c.Period,
		Filled:   d.Filled,
		Observed: models.Numbers(c.Observed),
		Trend:    models.Numbers(c.Trend),
		Seasonal: models.Numbers(c.Seasonal),
		Residual: models.Numbers(c.Residual),
	}
}

func toBoxes(in []service.BoxStats) []models.BoxStats {
	out := make([]models.BoxStats, len(in))
	for i, b := range in {
		out[i] = models.BoxStats{
			Key:          b.Key,
			Count:        b.Count,
			Q1:           models.Number(b.Q1),
			Median:       models.Number(b.Median),
			Q3:           models.Number(b.Q3),
			LowerWhisker: models.Number(b.LowerWhisker),
			UpperWhisker: models.Number(b.UpperWhisker),
			Outliers:     models.Numbers(b.Outliers),
		}
	}
	return out
}

func toPoints(in []service.Point) []models.Point {
	out := make([]models.Point, len(in))
	for i, p := range in {
		out[i] = models.Point{X: p.X, Y: p.Y}
	}
	return out
}

func toDashboard(r *service.Report) models.DashboardResponse {
	resp := models.DashboardResponse{
		Station:   r.Selection.Station,
		Pollutant: string(r.Selection.Pollutant),
		Columns:   columnNames(r.Selection.Columns),
		Panels:    make([]models.PanelResponse, len(r.Panels)),
	}
	for i, p := range r.Panels {
		if !p.OK {
			resp.Panels[i] = models.PanelResponse{Name: p.Name, Status: "notice", Notice: p.Notice, Reason: p.Reason}
			continue
		}
		resp.Panels[i] = models.PanelResponse{Name: p.Name, Status: "ok", Data: panelData(p.Data)}
	}
	return resp
}

// panelData converts a panel payload to its response form.
func panelData(data any) any {
	switch v := data.(type) {
	case []service.ColumnSummary:
		return toSummaries(v)
	case service.CorrelationMatrix:
		return toCorrelation(v)
	case service.GroupedSeries:
		return toGroup(v)
	case *service.DecompositionPanel:
		return toDecomposition(v)
	case []service.BoxStats:
		return toBoxes(v)
	case []service.Point:
		return toPoints(v)
	default:
		return v
	}
}
