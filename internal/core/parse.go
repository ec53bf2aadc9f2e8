package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order. Slash dates are month first.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/06",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate coerces a cell value to a calendar date. The boolean is false
// when the value is blank or matches no known layout.
func ParseDate(v string) (Date, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return DateOf(t), true
		}
	}
	return Date{}, false
}

// ParseAmount coerces a cell value to a decimal amount. Blank cells are zero.
// Grouping separators are not stripped: "1.234" is one point two three four.
func ParseAmount(v string) (decimal.Decimal, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
