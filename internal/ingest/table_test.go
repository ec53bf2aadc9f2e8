package ingest

import (
	"errors"
	"testing"

	"costdash/internal/core"

	"github.com/shopspring/decimal"
)

func TestParseTable(t *testing.T) {
	rows := [][]string{
		{"NO", " DATE ", "WBS", "COST CODE", "DESCRIPTION", "AMOUNT"},
		{"1", "2023-04-01", "A", "C1", "cement", "100"},
		{"2", "garbage", "A", "C1", "ignored", "5"},
		{"3", "45047", " B ", "C2", "", "200.5"}, // Excel serial for 2023-05-01
		{"", "", "", "", "", ""},
		{"4", "2023-05-02", "B", "C2", "", "n/a"},
		{"5", "2023-05-03", "B"}, // short row: blank cost code and amount
	}
	ds, err := ParseTable(rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ds.Records) != 3 || ds.SkippedDates != 1 || ds.SkippedAmounts != 1 {
		t.Fatalf("unexpected dataset: records=%d skippedDates=%d skippedAmounts=%d", len(ds.Records), ds.SkippedDates, ds.SkippedAmounts)
	}
	if ds.Rows() != 5 {
		t.Fatalf("Rows()=%d want 5", ds.Rows())
	}

	b := ds.Records[1]
	if b.WBS != "B" || b.CostCode != "C2" || !b.Date.Equal(core.NewDate(2023, 5, 1).Time) {
		t.Fatalf("unexpected record %+v", b)
	}
	if !b.Amount.Equal(decimal.RequireFromString("200.5")) {
		t.Fatalf("amount %s", b.Amount)
	}
	last := ds.Records[2]
	if last.CostCode != "" || !last.Amount.IsZero() {
		t.Fatalf("short row should coerce blanks: %+v", last)
	}
}

func TestParseTableMissingColumns(t *testing.T) {
	cases := []struct {
		name    string
		rows    [][]string
		missing []string
	}{
		{"no rows", nil, RequiredColumns},
		{"lower case headers", [][]string{{"date", "wbs", "cost code", "amount"}}, RequiredColumns},
		{"missing two", [][]string{{"DATE", "WBS", "COSTCODE"}}, []string{ColCostCode, ColAmount}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTable(tc.rows)
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if len(se.Missing) != len(tc.missing) {
				t.Fatalf("missing=%v want %v", se.Missing, tc.missing)
			}
			for i := range tc.missing {
				if se.Missing[i] != tc.missing[i] {
					t.Fatalf("missing=%v want %v", se.Missing, tc.missing)
				}
			}
		})
	}
}

func TestCoerceDateSerialBounds(t *testing.T) {
	if _, ok := coerceDate("0"); ok {
		t.Fatalf("serial 0 should not coerce")
	}
	if _, ok := coerceDate("99999999"); ok {
		t.Fatalf("huge serial should not coerce")
	}
	d, ok := coerceDate("45017.75")
	if !ok || d.String() != "2023-04-01" {
		t.Fatalf("fractional serial: %s ok=%v", d, ok)
	}
}
