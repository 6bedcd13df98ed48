package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var zipMagic = []byte("PK\x03\x04")

// Read parses an uploaded file. The format is chosen from the file
// extension, falling back to content sniffing for unnamed uploads.
func Read(name string, data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoHeader
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(name, data)
	case ".csv", ".txt":
		return ReadCSV(name, data)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls, save the file as .xlsx", ErrUnsupportedType)
	}
	if bytes.HasPrefix(data, zipMagic) {
		return ReadXLSX(name, data)
	}
	return ReadCSV(name, data)
}

// ReadXLSX reads the first worksheet. Cells are read raw so date cells come
// back as Excel serial numbers instead of locale formatted text.
func ReadXLSX(name string, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	return fromRows(name, rows)
}

// ReadCSV reads comma or semicolon separated text.
func ReadCSV(name string, data []byte) (*Table, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, row)
	}
	return fromRows(name, rows)
}

// sniffDelimiter picks ';' when the header line has more semicolons than
// commas, as Excel does on locales with a decimal comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
