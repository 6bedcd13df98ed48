// Package sheet loads and writes the tabular files exchanged with users:
// the master roster and the weekly ERP extract, as CSV or XLSX.
package sheet

import (
	"errors"
	"strings"
)

var (
	ErrEmptyTable      = errors.New("table has no data rows")
	ErrNoHeader        = errors.New("table has no header row")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Table is a header row plus data rows. Rows are padded to the header width.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Cell returns the value at row/col, or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// fromRows builds a table from raw rows: the first non-blank row is the
// header, blank rows are skipped and every row is padded or truncated to the
// header width.
func fromRows(name string, rows [][]string) (*Table, error) {
	start := -1
	for i, r := range rows {
		if !blank(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoHeader
	}

	headers := trimTrailingEmpty(rows[start])
	t := &Table{Name: name, Headers: headers}
	width := len(headers)
	for _, r := range rows[start+1:] {
		if blank(r) {
			continue
		}
		row := make([]string, width)
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	return t, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return append([]string(nil), row[:end]...)
}
