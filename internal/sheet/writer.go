package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DisplayDateLayout is the day-first layout used for dates written back to
// users.
const DisplayDateLayout = "02/01/2006"

// WriteOptions controls XLSX output.
type WriteOptions struct {
	SheetName string
	// DateColumns holds column indexes whose DD/MM/YYYY text is written as
	// real date cells.
	DateColumns []int
}

// WriteXLSX renders the table as a single-sheet workbook with a styled,
// frozen header row.
func WriteXLSX(w io.Writer, t *Table, opts WriteOptions) error {
	sheetName := opts.SheetName
	if sheetName == "" {
		sheetName = "Maestro"
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateFmt := "dd/mm/yyyy"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	for col, header := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidth(header)); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	dateCols := make(map[int]bool, len(opts.DateColumns))
	for _, c := range opts.DateColumns {
		dateCols[c] = true
	}

	for rowIdx, row := range t.Rows {
		for colIdx, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if dateCols[colIdx] {
				if d, err := time.Parse(DisplayDateLayout, value); err == nil {
					if err := f.SetCellValue(sheetName, cell, d); err != nil {
						return fmt.Errorf("failed to set date cell %s: %w", cell, err)
					}
					if err := f.SetCellStyle(sheetName, cell, cell, dateStyle); err != nil {
						return fmt.Errorf("failed to set date style: %w", err)
					}
					continue
				}
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// XLSXBytes is WriteXLSX into a buffer.
func XLSXBytes(t *Table, opts WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, t, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes the table as comma separated UTF-8.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func columnWidth(header string) float64 {
	n := len([]rune(strings.TrimSpace(header))) + 4
	switch {
	case n < 12:
		return 12
	case n > 40:
		return 40
	}
	return float64(n)
}
