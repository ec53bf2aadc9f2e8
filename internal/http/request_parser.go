// Package http provides HTTP server and handler implementations.
//
// This file implements parsing of the dashboard filter query string.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"costdash/internal/core"
)

// Query parameter names shared by the series and summary endpoints.
const (
	paramStart    = "start"
	paramEnd      = "end"
	paramWBS      = "wbs"
	paramCostCode = "cost_code"
	paramRows     = "rows"
)

// ErrInvalidQuery marks a filter query the client must fix.
var ErrInvalidQuery = errors.New("invalid query")

// FilterQuery is a parsed filter selection plus the summary row policy.
type FilterQuery struct {
	Params core.FilterParams
	Rows   core.RowInclusion
}

// ParseFilterQuery reads start, end, wbs, cost_code and rows.
//
// Absent parameters stay unspecified so the pipeline can default them from
// the dataset. A wbs or cost_code key that is present but carries only blank
// values yields an empty, non-nil selection that matches nothing.
func ParseFilterQuery(q url.Values) (FilterQuery, error) {
	var fq FilterQuery
	var err error

	if fq.Params.Start, err = parseQueryDate(q, paramStart); err != nil {
		return FilterQuery{}, err
	}
	if fq.Params.End, err = parseQueryDate(q, paramEnd); err != nil {
		return FilterQuery{}, err
	}
	fq.Params.WBS = parseSelection(q, paramWBS)
	fq.Params.CostCodes = parseSelection(q, paramCostCode)

	switch strings.ToLower(strings.TrimSpace(q.Get(paramRows))) {
	case "", "current":
		fq.Rows = core.CurrentWindowOnly
	case "any", "all":
		fq.Rows = core.AnyWindow
	default:
		return FilterQuery{}, fmt.Errorf("%w: %s must be 'current' or 'any'", ErrInvalidQuery, paramRows)
	}

	if err := fq.Params.Validate(); err != nil {
		return FilterQuery{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return fq, nil
}

func parseQueryDate(q url.Values, key string) (core.Date, error) {
	v := sanitizeInput(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", ErrInvalidQuery, key, v)
	}
	return core.DateOf(t), nil
}

func parseSelection(q url.Values, key string) []string {
	values, ok := q[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = sanitizeInput(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
