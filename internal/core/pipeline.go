package core

import (
	"slices"

	"github.com/shopspring/decimal"
)

// RunOptions configures one dashboard computation.
type RunOptions struct {
	Window DisplayWindow
	Rows   RowInclusion
}

// Dashboard is everything the UI renders for one filter selection.
type Dashboard struct {
	Filter FilterParams
	Window DisplayWindow

	// Series holds every cumulative point for the filtered records.
	Series []CumulativePoint
	// Visible is Series restricted to the display window.
	Visible []CumulativePoint
	// Annotations is the last point of each WBS line in Series.
	Annotations []CumulativePoint

	Summary PeriodSummary
}

// FilterRecords keeps records dated within [Start, End] whose WBS and cost
// code are both selected. Input order is preserved.
func FilterRecords(records []CostRecord, p FilterParams) []CostRecord {
	wbs := toSet(p.WBS)
	codes := toSet(p.CostCodes)
	out := make([]CostRecord, 0, len(records))
	for _, r := range records {
		if r.Date.Before(p.Start.Time) || r.Date.After(p.End.Time) {
			continue
		}
		if _, ok := wbs[r.WBS]; !ok {
			continue
		}
		if _, ok := codes[r.CostCode]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CumulativeSeries stable-sorts the records by date and emits one running
// total per record within its WBS. Points are grouped by WBS in first-seen
// order of the sorted records, each group in date order.
func CumulativeSeries(filtered []CostRecord) []CumulativePoint {
	sorted := slices.Clone(filtered)
	slices.SortStableFunc(sorted, func(a, b CostRecord) int {
		return a.Date.Compare(b.Date.Time)
	})

	groups := map[string][]CumulativePoint{}
	var order []string
	for _, r := range sorted {
		pts, ok := groups[r.WBS]
		if !ok {
			order = append(order, r.WBS)
		}
		running := r.Amount
		if len(pts) > 0 {
			running = pts[len(pts)-1].Cumulative.Add(r.Amount)
		}
		groups[r.WBS] = append(pts, CumulativePoint{
			WBS:        r.WBS,
			CostCode:   r.CostCode,
			Date:       r.Date,
			Amount:     r.Amount,
			Cumulative: running,
		})
	}

	out := make([]CumulativePoint, 0, len(sorted))
	for _, w := range order {
		out = append(out, groups[w]...)
	}
	return out
}

// LastPoints returns the final point of each WBS line, in line order.
func LastPoints(series []CumulativePoint) []CumulativePoint {
	last := map[string]int{}
	var order []string
	for i, p := range series {
		if _, ok := last[p.WBS]; !ok {
			order = append(order, p.WBS)
		}
		last[p.WBS] = i
	}
	out := make([]CumulativePoint, 0, len(order))
	for _, w := range order {
		out = append(out, series[last[w]])
	}
	return out
}

// ClipToWindow keeps the points dated inside w. Cumulative values still
// include contributions from records outside the window.
func ClipToWindow(series []CumulativePoint, w DisplayWindow) []CumulativePoint {
	out := make([]CumulativePoint, 0, len(series))
	for _, p := range series {
		if w.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out
}

// GroupTotals sums amounts per WBS in first-seen order.
func GroupTotals(records []CostRecord) (order []string, totals map[string]decimal.Decimal) {
	totals = map[string]decimal.Decimal{}
	for _, r := range records {
		if _, ok := totals[r.WBS]; !ok {
			order = append(order, r.WBS)
		}
		totals[r.WBS] = totals[r.WBS].Add(r.Amount)
	}
	return order, totals
}

// Run applies the full pipeline: unspecified filter fields default to the
// observed data, the chart series is built from the filtered records and the
// period summary from the whole dataset.
func Run(records []CostRecord, p FilterParams, opts RunOptions) (Dashboard, error) {
	if err := p.Validate(); err != nil {
		return Dashboard{}, err
	}
	if err := opts.Window.Validate(); err != nil {
		return Dashboard{}, err
	}
	p = p.WithDefaults(records)

	series := CumulativeSeries(FilterRecords(records, p))
	return Dashboard{
		Filter:      p,
		Window:      opts.Window,
		Series:      series,
		Visible:     ClipToWindow(series, opts.Window),
		Annotations: LastPoints(series),
		Summary:     SummarizePeriods(records, p, opts.Rows),
	}, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
