// Package ingest turns uploaded cost sheets into core records.
//
// A sheet is a header row followed by data rows. Only the DATE, WBS,
// COST CODE and AMOUNT columns are read; any other column is ignored.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"costdash/internal/core"

	"github.com/xuri/excelize/v2"
)

// Required column headers. Matching is exact after trimming whitespace.
const (
	ColDate     = "DATE"
	ColWBS      = "WBS"
	ColCostCode = "COST CODE"
	ColAmount   = "AMOUNT"
)

// RequiredColumns lists the headers every sheet must carry.
var RequiredColumns = []string{ColDate, ColWBS, ColCostCode, ColAmount}

var ErrUnsupportedFormat = errors.New("unsupported file format")

// SchemaError reports required columns absent from the header row.
type SchemaError struct {
	Missing []string
	Headers []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required column(s) %s; got headers=%q", strings.Join(e.Missing, ", "), e.Headers)
}

// Dataset is a parsed sheet. Records keep sheet order.
type Dataset struct {
	Records []core.CostRecord
	// SkippedDates counts rows dropped because DATE did not coerce.
	SkippedDates int
	// SkippedAmounts counts rows dropped because AMOUNT was not numeric.
	SkippedAmounts int
}

// Rows returns the number of data rows seen, kept or not.
func (d Dataset) Rows() int {
	return len(d.Records) + d.SkippedDates + d.SkippedAmounts
}

// ParseTable reads a header row plus data rows. Missing required columns
// are fatal; rows whose date or amount cannot be coerced are dropped and
// counted. Fully blank rows are ignored.
func ParseTable(rows [][]string) (Dataset, error) {
	var headers []string
	if len(rows) > 0 {
		headers = trimAll(rows[0])
	}
	cols := make(map[string]int, len(RequiredColumns))
	var missing []string
	for _, name := range RequiredColumns {
		idx := indexOf(headers, name)
		if idx == -1 {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return Dataset{}, &SchemaError{Missing: missing, Headers: headers}
	}

	var ds Dataset
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		date, ok := coerceDate(safeGet(row, cols[ColDate]))
		if !ok {
			ds.SkippedDates++
			continue
		}
		amount, ok := core.ParseAmount(safeGet(row, cols[ColAmount]))
		if !ok {
			ds.SkippedAmounts++
			continue
		}
		ds.Records = append(ds.Records, core.CostRecord{
			Date:     date,
			WBS:      strings.TrimSpace(safeGet(row, cols[ColWBS])),
			CostCode: strings.TrimSpace(safeGet(row, cols[ColCostCode])),
			Amount:   amount,
		})
	}
	return ds, nil
}

// Excel stores dates as days since 1899-12-30; 2958465 is 9999-12-31.
const maxExcelSerial = 2958465

// coerceDate accepts textual dates and Excel serial numbers.
func coerceDate(v string) (core.Date, bool) {
	if d, ok := core.ParseDate(v); ok {
		return d, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 1 || f > maxExcelSerial {
		return core.Date{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return core.Date{}, false
	}
	return core.DateOf(t), true
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if v == target {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
