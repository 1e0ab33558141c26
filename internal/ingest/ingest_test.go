package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thereceipt/certificate-engine/internal/binding"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	data := "\ufeffName, Course,Date\nAda,Math,2025-01-01\nGrace,,2025-01-02\n\n,,\nAlan,Logic\n"

	table, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to read csv: %v", err)
	}

	if len(table.Headers) != 3 || table.Headers[0] != "Name" || table.Headers[1] != "Course" {
		t.Errorf("Unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Course"] != "Math" {
		t.Errorf("Expected Math, got %v", table.Rows[0]["Course"])
	}
	if _, ok := table.Rows[1]["Course"]; ok {
		t.Error("Expected empty cell to be omitted")
	}
	if _, ok := table.Rows[2]["Date"]; ok {
		t.Error("Expected short record to leave trailing fields absent")
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"duplicate header", "Name,Name\na,b\n"},
		{"blank header", "Name,\na,b\n"},
		{"bad quoting", "Name\n\"unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	os.WriteFile(path, []byte("Name\nAda\n"), 0644)

	table, err := ReadCSVFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(table.Rows))
	}

	if _, err := ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadJSON(t *testing.T) {
	data := `[{"Name": "Ada", "Score": 98}, {"Name": "Grace", "Course": "Compilers"}]`

	table, err := ReadJSON(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to read json: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}

	score, err := binding.Display(table.Rows[0]["Score"])
	if err != nil || score != "98" {
		t.Errorf("Expected score 98, got %q (%v)", score, err)
	}
	if len(table.Headers) != 3 {
		t.Errorf("Expected 3 headers, got %v", table.Headers)
	}
}

func newWorkbook(t *testing.T, rows [][]interface{}) *excelize.File {
	t.Helper()
	wb := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to name cell: %v", err)
		}
		if err := wb.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}
	return wb
}

func TestReadXLSX(t *testing.T) {
	wb := newWorkbook(t, [][]interface{}{
		{"Name", " Course ", "Score"},
		{"Ada", "Math", 98},
		{"Grace", "", 91},
		{},
		{"Alan", "Logic"},
	})
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}

	table, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to read xlsx: %v", err)
	}

	if len(table.Headers) != 3 || table.Headers[1] != "Course" {
		t.Errorf("Unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Score"] != "98" {
		t.Errorf("Expected score 98, got %v", table.Rows[0]["Score"])
	}
	if _, ok := table.Rows[1]["Course"]; ok {
		t.Error("Expected empty cell to be omitted")
	}
	if _, ok := table.Rows[2]["Score"]; ok {
		t.Error("Expected short row to leave trailing fields absent")
	}
}

func TestReadXLSX_Errors(t *testing.T) {
	empty, _ := excelize.NewFile().WriteToBuffer()
	dup, _ := newWorkbook(t, [][]interface{}{{"Name", "Name"}}).WriteToBuffer()

	tests := []struct {
		name string
		data []byte
	}{
		{"not a workbook", []byte("Name\nAda\n")},
		{"empty sheet", empty.Bytes()},
		{"duplicate header", dup.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadXLSX(bytes.NewReader(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestReadFile_PicksFormat(t *testing.T) {
	dir := t.TempDir()

	xlsxPath := filepath.Join(dir, "students.xlsx")
	if err := newWorkbook(t, [][]interface{}{{"Name"}, {"Ada"}}).SaveAs(xlsxPath); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	jsonPath := filepath.Join(dir, "students.json")
	os.WriteFile(jsonPath, []byte(`[{"Name":"Grace"}]`), 0644)

	for path, want := range map[string]string{xlsxPath: "Ada", jsonPath: "Grace"} {
		table, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) failed: %v", filepath.Base(path), err)
		}
		if len(table.Rows) != 1 || table.Rows[0]["Name"] != want {
			t.Errorf("ReadFile(%s): expected %s, got %v", filepath.Base(path), want, table.Rows)
		}
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        Format
	}{
		{"rows.csv", "", FormatCSV},
		{"rows.JSON", "", FormatJSON},
		{"students.xlsx", "", FormatXLSX},
		{"/api/export", "application/json; charset=utf-8", FormatJSON},
		{"", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatXLSX},
		{"rows.csv", "application/json", FormatCSV},
		{"data", "", FormatCSV},
	}

	for _, tt := range tests {
		if got := FormatFor(tt.name, tt.contentType); got != tt.want {
			t.Errorf("FormatFor(%q, %q) = %s, want %s", tt.name, tt.contentType, got, tt.want)
		}
	}
}
