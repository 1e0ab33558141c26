// Package ingest turns uploaded spreadsheets into data rows
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/thereceipt/certificate-engine/internal/binding"
	"github.com/xuri/excelize/v2"
)

// Table is a parsed sheet: column headers plus one row per record
type Table struct {
	Headers []string      `json:"headers"`
	Rows    []binding.Row `json:"rows"`
}

// Format names a supported data file layout
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// FormatFor picks the format from a file name, falling back to the content
// type and then CSV
func FormatFor(name, contentType string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	}

	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return FormatJSON
	case strings.HasPrefix(contentType, "application/vnd.openxmlformats-officedocument.spreadsheetml"):
		return FormatXLSX
	}
	return FormatCSV
}

// Read parses r as the given format
func Read(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatJSON:
		return ReadJSON(r)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return ReadCSV(r)
	}
}

// ReadFile parses the data file at p, choosing the format by extension
func ReadFile(p string) (*Table, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	return Read(f, FormatFor(p, ""))
}

// ReadCSV parses CSV with a header line. Empty cells are left out of the
// row so they resolve as missing fields. Blank lines are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headerRec, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	table, err := newTable(headerRec)
	if err != nil {
		return nil, err
	}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		table.addRecord(rec)
	}

	return table, nil
}

// ReadXLSX parses the first sheet of a workbook. The first row holds the
// headers and cells follow the same rules as ReadCSV.
func ReadXLSX(r io.Reader) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	// Leading blank rows come back as empty slices
	for len(records) > 0 && len(records[0]) == 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	table, err := newTable(records[0])
	if err != nil {
		return nil, err
	}
	for _, rec := range records[1:] {
		table.addRecord(rec)
	}
	return table, nil
}

func newTable(headerRec []string) (*Table, error) {
	headers := make([]string, len(headerRec))
	seen := make(map[string]bool)
	for i, h := range headerRec {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("column %d has an empty header", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column header %q", h)
		}
		seen[h] = true
		headers[i] = h
	}
	return &Table{Headers: headers, Rows: []binding.Row{}}, nil
}

// addRecord appends rec as a row, dropping empty cells and blank records
func (t *Table) addRecord(rec []string) {
	row := make(binding.Row)
	for i, cell := range rec {
		if i >= len(t.Headers) {
			break
		}
		if cell = strings.TrimSpace(cell); cell != "" {
			row[t.Headers[i]] = cell
		}
	}
	if len(row) > 0 {
		t.Rows = append(t.Rows, row)
	}
}

// ReadCSVFile parses the CSV file at path
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadJSON parses a JSON array of objects. Headers are collected in order
// of first appearance, sorted within each object.
func ReadJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse rows: %w", err)
	}

	table := &Table{Rows: make([]binding.Row, 0, len(raw))}
	seen := make(map[string]bool)
	for _, obj := range raw {
		for _, k := range slices.Sorted(maps.Keys(obj)) {
			if !seen[k] {
				seen[k] = true
				table.Headers = append(table.Headers, k)
			}
		}
		table.Rows = append(table.Rows, binding.Row(obj))
	}
	return table, nil
}
