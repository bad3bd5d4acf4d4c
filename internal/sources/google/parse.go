package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

// Header names of the expenses sheet, matched case-insensitively.
const (
	colID          = "ID"
	colDate        = "Date"
	colStore       = "Store"
	colCategory    = "Category"
	colAmount      = "Amount"
	colDescription = "Description"
)

var ErrUnexpectedHeader = errors.New("unexpected expenses header")

// parseExpenses converts a values matrix (as returned by the Sheets API) into
// general expenses that pass f. The first row must be the header. Blank rows
// are skipped; any other row that does not parse fails the whole read.
func parseExpenses(values [][]interface{}, f sources.Filter) ([]core.GeneralExpense, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := map[string]int{}
	var missing []string
	for _, name := range []string{colDate, colStore, colCategory, colAmount} {
		idx := indexOf(headers, name)
		if idx == -1 {
			missing = append(missing, name)
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s; got headers=%v", ErrUnexpectedHeader, strings.Join(missing, ","), headers)
	}
	cols[colID] = indexOf(headers, colID)
	cols[colDescription] = indexOf(headers, colDescription)

	var out []core.GeneralExpense
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		// Sheet rows are 1-based and the header is row 1.
		rowNum := i + 1
		e, err := parseRow(row, cols, rowNum)
		if err != nil {
			return nil, err
		}
		if !f.Matches(e.StoreID, e.Date) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func parseRow(row []string, cols map[string]int, rowNum int) (core.GeneralExpense, error) {
	date, err := core.ParseDate(safeGet(row, cols[colDate]))
	if err != nil {
		return core.GeneralExpense{}, fmt.Errorf("row %d: %w", rowNum, err)
	}
	amount, err := core.ParseAmount(safeGet(row, cols[colAmount]))
	if err != nil {
		return core.GeneralExpense{}, fmt.Errorf("row %d: %w", rowNum, err)
	}
	id := safeGet(row, cols[colID])
	if id == "" {
		id = fmt.Sprintf("sheet-row-%d", rowNum)
	}
	e := core.GeneralExpense{
		ID:          id,
		StoreID:     safeGet(row, cols[colStore]),
		Date:        date,
		Category:    safeGet(row, cols[colCategory]),
		Amount:      amount,
		Description: safeGet(row, cols[colDescription]),
	}
	if err := e.Validate(); err != nil {
		return core.GeneralExpense{}, fmt.Errorf("row %d: %w", rowNum, err)
	}
	return e, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
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
		if v != "" {
			return false
		}
	}
	return true
}
