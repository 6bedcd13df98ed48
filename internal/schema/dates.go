package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Excel serials outside this range are not treated as dates. 2958465 is
// 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// dateLayouts are tried in order. Slash, dash and dot dates are day first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/06",
	"2006/01/02",
	"20060102",
}

// ParseDate coerces a cell to a calendar date at midnight UTC. Blank cells
// give (nil, true); unparseable text gives (nil, false).
func ParseDate(value string) (*time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil, true
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(f, false)
		if err == nil {
			d := dateOnly(t)
			return &d, true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := dateOnly(t)
			return &d, true
		}
	}
	return nil, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
