package http

import (
	"time"

	"costdash/internal/cache"
	"costdash/internal/core"
)

// datasetView is returned after an upload or import.
type datasetView struct {
	ID             string   `json:"id"`
	File           string   `json:"file"`
	Source         string   `json:"source"`
	Records        int      `json:"records"`
	SkippedDates   int      `json:"skipped_dates"`
	SkippedAmounts int      `json:"skipped_amounts"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	WBS            []string `json:"wbs"`
	CostCodes      []string `json:"cost_codes"`
}

func newDatasetView(s cache.Session) datasetView {
	return datasetView{
		ID:             s.ID,
		File:           s.File,
		Source:         s.Source,
		Records:        len(s.Dataset.Records),
		SkippedDates:   s.Dataset.SkippedDates,
		SkippedAmounts: s.Dataset.SkippedAmounts,
		Start:          s.Defaults.Start.String(),
		End:            s.Defaults.End.String(),
		WBS:            s.Defaults.WBS,
		CostCodes:      s.Defaults.CostCodes,
	}
}

type pointView struct {
	X        string  `json:"x"`
	Y        float64 `json:"y"`
	CostCode string  `json:"cost_code"`
	Amount   string  `json:"amount"`
}

type annotationView struct {
	X        string  `json:"x"`
	Y        float64 `json:"y"`
	Label    string  `json:"label"`
	InWindow bool    `json:"in_window"`
}

type lineView struct {
	WBS        string          `json:"wbs"`
	Points     []pointView     `json:"points"`
	Annotation *annotationView `json:"annotation,omitempty"`
}

type windowView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// seriesView is the chart payload: one line per WBS clipped to the display
// window, each annotated with the last cumulative value of its full line.
type seriesView struct {
	DatasetID string     `json:"dataset_id"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Window    windowView `json:"window"`
	Lines     []lineView `json:"lines"`
}

func newSeriesView(id string, d core.Dashboard, money core.CurrencyFormat) seriesView {
	v := seriesView{
		DatasetID: id,
		Start:     d.Filter.Start.String(),
		End:       d.Filter.End.String(),
		Window:    windowView{From: d.Window.From.String(), To: d.Window.To.String()},
		Lines:     []lineView{},
	}

	index := map[string]int{}
	for _, a := range d.Annotations {
		index[a.WBS] = len(v.Lines)
		v.Lines = append(v.Lines, lineView{
			WBS:    a.WBS,
			Points: []pointView{},
			Annotation: &annotationView{
				X:        a.Date.String(),
				Y:        a.Cumulative.InexactFloat64(),
				Label:    money.Format(a.Cumulative),
				InWindow: d.Window.Contains(a.Date),
			},
		})
	}
	for _, p := range d.Visible {
		i := index[p.WBS]
		v.Lines[i].Points = append(v.Lines[i].Points, pointView{
			X:        p.Date.String(),
			Y:        p.Cumulative.InexactFloat64(),
			CostCode: p.CostCode,
			Amount:   p.Amount.String(),
		})
	}
	return v
}

type summaryRowView struct {
	WBS      string `json:"wbs"`
	CostCode string `json:"cost_code"`

	Previous string `json:"previous"`
	Current  string `json:"current"`
	Next     string `json:"next"`

	PreviousFormatted string `json:"previous_formatted"`
	CurrentFormatted  string `json:"current_formatted"`
	NextFormatted     string `json:"next_formatted"`

	IsTotal bool `json:"is_total,omitempty"`
}

func newSummaryRowView(r core.PeriodRow, money core.CurrencyFormat) summaryRowView {
	return summaryRowView{
		WBS:               r.WBS,
		CostCode:          r.CostCode,
		Previous:          r.Previous.String(),
		Current:           r.Current.String(),
		Next:              r.Next.String(),
		PreviousFormatted: money.Format(r.Previous),
		CurrentFormatted:  money.Format(r.Current),
		NextFormatted:     money.Format(r.Next),
		IsTotal:           r.IsTotal(),
	}
}

// summaryView backs both summary.json and the summary.html partial.
type summaryView struct {
	DatasetID string           `json:"dataset_id"`
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Rows      []summaryRowView `json:"rows"`
	Total     summaryRowView   `json:"total"`
}

func newSummaryView(id string, d core.Dashboard, money core.CurrencyFormat) summaryView {
	v := summaryView{
		DatasetID: id,
		Start:     d.Filter.Start.String(),
		End:       d.Filter.End.String(),
		Rows:      make([]summaryRowView, 0, len(d.Summary.Rows)),
		Total:     newSummaryRowView(d.Summary.Total, money),
	}
	for _, r := range d.Summary.Rows {
		v.Rows = append(v.Rows, newSummaryRowView(r, money))
	}
	return v
}

type uploadView struct {
	DatasetID      string `json:"dataset_id"`
	File           string `json:"file"`
	Source         string `json:"source"`
	Records        int    `json:"records"`
	SkippedDates   int    `json:"skipped_dates"`
	SkippedAmounts int    `json:"skipped_amounts"`
	Start          string `json:"start"`
	End            string `json:"end"`
	CreatedAt      string `json:"created_at"`
}

func newUploadViews(metas []core.UploadMeta) []uploadView {
	out := make([]uploadView, 0, len(metas))
	for _, m := range metas {
		out = append(out, uploadView{
			DatasetID:      m.DatasetID,
			File:           m.File,
			Source:         m.Source,
			Records:        m.Records,
			SkippedDates:   m.SkippedDates,
			SkippedAmounts: m.SkippedAmounts,
			Start:          m.Start.String(),
			End:            m.End.String(),
			CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
