package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// RowInclusion selects which (WBS, cost code) pairs become summary rows.
type RowInclusion int

const (
	// CurrentWindowOnly keeps pairs that have at least one record in the
	// current window; amounts seen only before or after are dropped.
	CurrentWindowOnly RowInclusion = iota
	// AnyWindow keeps every pair seen in any of the three windows, so the
	// table total equals the dataset total.
	AnyWindow
)

type pairKey struct {
	wbs, code string
}

// SummarizePeriods splits the unfiltered dataset around [Start, End] and sums
// amounts per (WBS, cost code): previous is everything before Start, current
// is Start through End inclusive, next is everything after End. The WBS and
// cost code selections do not apply here. Rows are ordered by WBS then cost
// code.
func SummarizePeriods(all []CostRecord, p FilterParams, inclusion RowInclusion) PeriodSummary {
	rows := map[pairKey]*PeriodRow{}
	var order []pairKey
	row := func(k pairKey) *PeriodRow {
		r, ok := rows[k]
		if !ok {
			r = &PeriodRow{WBS: k.wbs, CostCode: k.code}
			rows[k] = r
			order = append(order, k)
		}
		return r
	}

	inCurrent := map[pairKey]bool{}
	for _, rec := range all {
		k := pairKey{rec.WBS, rec.CostCode}
		r := row(k)
		switch {
		case rec.Date.Before(p.Start.Time):
			r.Previous = r.Previous.Add(rec.Amount)
		case rec.Date.After(p.End.Time):
			r.Next = r.Next.Add(rec.Amount)
		default:
			r.Current = r.Current.Add(rec.Amount)
			inCurrent[k] = true
		}
	}

	slices.SortFunc(order, func(a, b pairKey) int {
		return cmp.Or(cmp.Compare(a.wbs, b.wbs), cmp.Compare(a.code, b.code))
	})

	out := PeriodSummary{
		Rows: make([]PeriodRow, 0, len(order)),
		Total: PeriodRow{
			WBS:      TotalLabel,
			Previous: decimal.Zero,
			Current:  decimal.Zero,
			Next:     decimal.Zero,
		},
	}
	for _, k := range order {
		if inclusion == CurrentWindowOnly && !inCurrent[k] {
			continue
		}
		r := *rows[k]
		out.Rows = append(out.Rows, r)
		out.Total.Previous = out.Total.Previous.Add(r.Previous)
		out.Total.Current = out.Total.Current.Add(r.Current)
		out.Total.Next = out.Total.Next.Add(r.Next)
	}
	return out
}

// AllRows returns the summary rows followed by the total row.
func (s PeriodSummary) AllRows() []PeriodRow {
	out := make([]PeriodRow, 0, len(s.Rows)+1)
	out = append(out, s.Rows...)
	return append(out, s.Total)
}
