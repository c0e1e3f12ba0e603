package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("formato de archivo no soportado, use .xlsx o .xls")

// maxXLSRows bounds how many rows are pulled from a legacy workbook.
const maxXLSRows = 1 << 20

// IsSpreadsheet reports whether name has an accepted workbook extension.
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// ReadFirstSheet returns the cell text of the first worksheet, one slice per
// row. Numeric cells of .xlsx files are returned unformatted, so dates come
// back as spreadsheet serial numbers.
func ReadFirstSheet(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".xls":
		return readXLS(path)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("no se pudo abrir el archivo: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("el archivo no contiene hojas")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer la hoja %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("no se pudo abrir el archivo: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("el archivo no contiene hojas")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow) && i < maxXLSRows; i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// cell returns the trimmed value at idx, or "" when the row is shorter.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "nan")
}

func cleanString(v string) string {
	if isBlank(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

// cleanDecimal parses an amount, dropping thousands separators. Blank or
// unparsable values count as zero.
func cleanDecimal(v string) decimal.Decimal {
	if isBlank(v) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// headerIndex maps trimmed header names to their column positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func headerNames(header []string) []string {
	names := make([]string, 0, len(header))
	for _, h := range header {
		if h = strings.TrimSpace(h); h != "" {
			names = append(names, h)
		}
	}
	return names
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// cleanDate normalizes a spreadsheet date to YYYY-MM-DD. Text in dd/mm/yyyy
// or ISO form and numeric serial dates are accepted; anything else is "".
func cleanDate(v string) string {
	v = cleanString(v)
	if v == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
