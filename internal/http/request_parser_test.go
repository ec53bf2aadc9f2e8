package http

import (
	"errors"
	"net/url"
	"testing"

	"costdash/internal/core"
)

func TestParseFilterQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantStart string
		wantEnd   string
		wantWBS   []string
		nilWBS    bool
		nilCodes  bool
		wantRows  core.RowInclusion
	}{
		{
			name:     "empty query leaves everything unspecified",
			query:    "",
			nilWBS:   true,
			nilCodes: true,
			wantRows: core.CurrentWindowOnly,
		},
		{
			name:      "dates and repeated selections",
			query:     "start=2023-03-01&end=2023-03-31&wbs=A&wbs=B&wbs=A&cost_code=C1",
			wantStart: "2023-03-01",
			wantEnd:   "2023-03-31",
			wantWBS:   []string{"A", "B"},
			wantRows:  core.CurrentWindowOnly,
		},
		{
			name:     "present but blank selection matches nothing",
			query:    "wbs=&rows=any",
			wantWBS:  []string{},
			nilCodes: true,
			wantRows: core.AnyWindow,
		},
		{
			name:     "control characters are stripped",
			query:    "wbs=%00A%07",
			wantWBS:  []string{"A"},
			nilCodes: true,
			wantRows: core.CurrentWindowOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got, err := ParseFilterQuery(q)
			if err != nil {
				t.Fatalf("ParseFilterQuery() error = %v", err)
			}
			if got.Params.Start.String() != tt.wantStart || got.Params.End.String() != tt.wantEnd {
				t.Errorf("range = %s..%s, want %s..%s", got.Params.Start, got.Params.End, tt.wantStart, tt.wantEnd)
			}
			if tt.nilWBS != (got.Params.WBS == nil) {
				t.Errorf("WBS nil = %v, want %v", got.Params.WBS == nil, tt.nilWBS)
			}
			if !tt.nilWBS && !equalStrings(got.Params.WBS, tt.wantWBS) {
				t.Errorf("WBS = %v, want %v", got.Params.WBS, tt.wantWBS)
			}
			if tt.nilCodes != (got.Params.CostCodes == nil) {
				t.Errorf("CostCodes nil = %v, want %v", got.Params.CostCodes == nil, tt.nilCodes)
			}
			if got.Rows != tt.wantRows {
				t.Errorf("Rows = %v, want %v", got.Rows, tt.wantRows)
			}
		})
	}
}

func TestParseFilterQueryErrors(t *testing.T) {
	for _, query := range []string{
		"start=03/01/2023",
		"end=2023-13-01",
		"rows=some",
		"start=2023-04-01&end=2023-03-01",
	} {
		q, _ := url.ParseQuery(query)
		if _, err := ParseFilterQuery(q); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%q: error = %v, want ErrInvalidQuery", query, err)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
