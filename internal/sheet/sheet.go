// Package sheet reads and writes the tabular files exchanged with teachers:
// Excel workbooks (one table per sheet) and single-table CSV files.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is one sheet read from disk. Row i of Rows is spreadsheet row i+2
// because the header occupies row 1.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Sheet is a table to be written. Cells may be strings or numbers.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// ErrUnsupportedFormat is returned for file extensions other than .xlsx and .csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Read loads every table of a workbook. A CSV file yields a single table
// named after the file.
func Read(path string) ([]Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		t, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		return []Table{t}, nil
	default:
		return nil, fmt.Errorf("read %s: %w", path, ErrUnsupportedFormat)
	}
}

// Write stores the sheets at path. CSV output accepts exactly one sheet.
func Write(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write %s: no sheets", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeXLSX(path, sheets)
	case ".csv":
		if len(sheets) != 1 {
			return fmt.Errorf("write %s: csv holds one sheet, got %d", path, len(sheets))
		}
		return writeCSV(path, sheets[0])
	default:
		return fmt.Errorf("write %s: %w", path, ErrUnsupportedFormat)
	}
}

// Column returns the index of the first header matching any of names
// (case-insensitive, surrounding spaces ignored), or -1.
func (t Table) Column(names ...string) int {
	for i, h := range t.Header {
		h = normalize(h)
		for _, n := range names {
			if h == normalize(n) {
				return i
			}
		}
	}
	return -1
}

// ColumnsWithPrefix returns, in order, the indexes of headers starting with
// any of the prefixes.
func (t Table) ColumnsWithPrefix(prefixes ...string) []int {
	var cols []int
	for i, h := range t.Header {
		h = normalize(h)
		for _, p := range prefixes {
			if strings.HasPrefix(h, normalize(p)) {
				cols = append(cols, i)
				break
			}
		}
	}
	return cols
}

// Cell returns the trimmed cell value, or "" when the row is shorter.
func (t Table) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// BlankRow reports whether every cell of the row is empty.
func (t Table) BlankRow(row int) bool {
	for col := range t.Rows[row] {
		if t.Cell(row, col) != "" {
			return false
		}
	}
	return true
}

// SheetRow converts a 0-based data row index to the row number a
// spreadsheet shows.
func SheetRow(row int) int {
	return row + 2
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func readXLSX(path string) ([]Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var tables []Table
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", name, path, err)
		}
		tables = append(tables, newTable(name, rows))
	}
	return tables, nil
}

func readCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return newTable(name, records), nil
}

func newTable(name string, rows [][]string) Table {
	t := Table{Name: name}
	if len(rows) == 0 {
		return t
	}
	t.Header = rows[0]
	t.Rows = rows[1:]
	return t
}

func writeXLSX(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("name sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", s.Name, err)
		}

		header := make([]any, len(s.Header))
		for j, h := range s.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return fmt.Errorf("write header of %q: %w", s.Name, err)
		}
		for j, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				return fmt.Errorf("write row %d of %q: %w", j+2, s.Name, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, s Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.Header); err != nil {
		return err
	}
	for _, row := range s.Rows {
		rec := make([]string, len(row))
		for i, c := range row {
			rec[i] = formatCell(c)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatCell(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}
