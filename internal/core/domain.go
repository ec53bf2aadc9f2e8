package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TotalLabel is the WBS value carried by the synthetic summary total row.
const TotalLabel = "Total"

type (
	// Date is a calendar date stored as UTC midnight.
	Date struct {
		time.Time
	}

	// CostRecord is one row of the uploaded cost sheet.
	CostRecord struct {
		Date     Date
		WBS      string // Work breakdown structure code
		CostCode string
		Amount   decimal.Decimal
	}

	// FilterParams selects the records feeding the chart and the current
	// summary window. A nil WBS or CostCodes slice means "not specified";
	// an empty non-nil slice selects nothing.
	FilterParams struct {
		Start     Date
		End       Date
		WBS       []string
		CostCodes []string
	}

	// CumulativePoint is the running total of a WBS group at one record.
	CumulativePoint struct {
		WBS        string
		CostCode   string
		Date       Date
		Amount     decimal.Decimal
		Cumulative decimal.Decimal
	}

	// PeriodRow aggregates one (WBS, cost code) pair over the three windows.
	PeriodRow struct {
		WBS      string
		CostCode string
		Previous decimal.Decimal
		Current  decimal.Decimal
		Next     decimal.Decimal
	}

	// PeriodSummary is the month-over-month table plus its total row.
	PeriodSummary struct {
		Rows  []PeriodRow
		Total PeriodRow
	}

	// DisplayWindow bounds what the chart shows. A zero bound is open.
	DisplayWindow struct {
		From Date
		To   Date
	}
)

var (
	ErrInvalidRange  = errors.New("start date is after end date")
	ErrInvalidWindow = errors.New("display window start is after its end")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

// Validate reports an inverted range. Zero bounds are allowed and treated
// as open by WithDefaults.
func (p FilterParams) Validate() error {
	if !p.Start.IsZero() && !p.End.IsZero() && p.Start.After(p.End.Time) {
		return ErrInvalidRange
	}
	return nil
}

// WithDefaults fills unspecified bounds and selections from the observed
// records: earliest/latest date and every WBS and cost code seen.
func (p FilterParams) WithDefaults(records []CostRecord) FilterParams {
	def := DefaultFilter(records)
	if p.Start.IsZero() {
		p.Start = def.Start
	}
	if p.End.IsZero() {
		p.End = def.End
	}
	if p.WBS == nil {
		p.WBS = def.WBS
	}
	if p.CostCodes == nil {
		p.CostCodes = def.CostCodes
	}
	return p
}

// DefaultFilter covers the full observed range and every category,
// in first-seen order.
func DefaultFilter(records []CostRecord) FilterParams {
	p := FilterParams{WBS: []string{}, CostCodes: []string{}}
	seenWBS := map[string]struct{}{}
	seenCode := map[string]struct{}{}
	for i, r := range records {
		if i == 0 || r.Date.Before(p.Start.Time) {
			p.Start = r.Date
		}
		if i == 0 || r.Date.After(p.End.Time) {
			p.End = r.Date
		}
		if _, ok := seenWBS[r.WBS]; !ok {
			seenWBS[r.WBS] = struct{}{}
			p.WBS = append(p.WBS, r.WBS)
		}
		if _, ok := seenCode[r.CostCode]; !ok {
			seenCode[r.CostCode] = struct{}{}
			p.CostCodes = append(p.CostCodes, r.CostCode)
		}
	}
	return p
}

// Validate reports an inverted window.
func (w DisplayWindow) Validate() error {
	if !w.From.IsZero() && !w.To.IsZero() && w.From.After(w.To.Time) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether d falls inside the window, bounds inclusive.
func (w DisplayWindow) Contains(d Date) bool {
	if !w.From.IsZero() && d.Before(w.From.Time) {
		return false
	}
	if !w.To.IsZero() && d.After(w.To.Time) {
		return false
	}
	return true
}

// IsTotal reports whether the row is the synthetic total row.
func (r PeriodRow) IsTotal() bool {
	return r.WBS == TotalLabel && strings.TrimSpace(r.CostCode) == ""
}

// Sum returns previous + current + next.
func (r PeriodRow) Sum() decimal.Decimal {
	return r.Previous.Add(r.Current).Add(r.Next)
}
