package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

const sampleReport = `# 📖 Literature Analysis Report

**Generated:** 2024-03-09 14:05:07

---

## 📊 Empirical Findings

| Classifier | Accuracy |
| --- | --- |
| SVM | 0.77 |
| LR \| ridge | 0.74 |

---

## ⚠️ Limitations

- Small sample <script>alert(1)</script>

*Generated by Literature Assistant powered by AI*
`

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if diff := cmp.Diff([]string{"docx", "html", "markdown", "xlsx"}, r.Formats()); diff != "" {
		t.Errorf("Formats mismatch (-want +got):\n%s", diff)
	}
	if _, err := r.Get("DOCX"); err != nil {
		t.Errorf("Get is case-insensitive: %v", err)
	}
	if _, err := r.Get("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"", ".md", "analysis.md"},
		{"report", ".docx", "report.docx"},
		{"report.docx", ".docx", "report.docx"},
		{"../../etc/passwd", ".md", "passwd.md"},
		{`C:\tmp\x"y.md`, ".md", "xy.md"},
		{"...", ".html", "analysis.html"},
	}
	for _, tt := range tests {
		if got := Filename(tt.name, tt.ext); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.want)
		}
	}
}

func TestMarkdownExporter(t *testing.T) {
	out, err := MarkdownExporter{}.Export(context.Background(), sampleReport)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(out) != sampleReport {
		t.Errorf("markdown export altered content")
	}
}

func TestDOCXExporter(t *testing.T) {
	out, err := DOCXExporter{}.Export(context.Background(), sampleReport)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Errorf("docx output is not a zip archive")
	}
}

func TestHTMLExporterSanitizes(t *testing.T) {
	out, err := HTMLExporter{}.Export(context.Background(), sampleReport)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	html := string(out)
	if strings.Contains(html, "<script>") {
		t.Errorf("script tag survived sanitizing:\n%s", html)
	}
	if !strings.Contains(html, "<table>") {
		t.Errorf("GFM table not rendered:\n%s", html)
	}
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Errorf("missing doctype")
	}
}

func TestXLSXExporterTables(t *testing.T) {
	out, err := XLSXExporter{}.Export(context.Background(), sampleReport)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "📊 Empirical Findings" {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := [][]string{
		{"Classifier", "Accuracy"},
		{"SVM", "0.77"},
		{"LR | ridge", "0.74"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestXLSXExporterNonFiniteStaysText(t *testing.T) {
	md := "## Results\n\n| Metric | Value |\n| --- | --- |\n| a | 1.5 |\n| d | NaN |\n| e | Inf |\n| f | -Infinity |\n"
	out, err := XLSXExporter{}.Export(context.Background(), md)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetList()[0]
	tests := []struct {
		cell string
		typ  excelize.CellType
		val  string
	}{
		{"B2", excelize.CellTypeUnset, "1.5"},
		{"B3", excelize.CellTypeSharedString, "NaN"},
		{"B4", excelize.CellTypeSharedString, "Inf"},
		{"B5", excelize.CellTypeSharedString, "-Infinity"},
	}
	for _, tt := range tests {
		typ, err := f.GetCellType(sheet, tt.cell)
		if err != nil {
			t.Fatalf("GetCellType(%s): %v", tt.cell, err)
		}
		val, _ := f.GetCellValue(sheet, tt.cell)
		if typ != tt.typ || val != tt.val {
			t.Errorf("%s = %q (type %d), want %q (type %d)", tt.cell, val, typ, tt.val, tt.typ)
		}
	}
}

func TestNumericCell(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want float64
	}{
		{"0.77", true, 0.77},
		{"-3", true, -3},
		{"1e-3", true, 0.001},
		{"NaN", false, 0},
		{"Inf", false, 0},
		{"+Infinity", false, 0},
		{"n = 40", false, 0},
	}
	for _, tt := range tests {
		n, ok := numericCell(tt.in)
		if ok != tt.ok || n != tt.want {
			t.Errorf("numericCell(%q) = %v, %v; want %v, %v", tt.in, n, ok, tt.want, tt.ok)
		}
	}
}

func TestXLSXExporterWithoutTables(t *testing.T) {
	out, err := XLSXExporter{}.Export(context.Background(), "# Title\n\nline one\n\nline two\n")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 || rows[2][0] != "line two" {
		t.Errorf("rows = %v", rows)
	}
}

func TestSheetNameUnique(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("x", 40)
	first := sheetName(long, 1, used)
	second := sheetName(long, 2, used)
	if len(first) != maxSheetName || len(second) != maxSheetName || first == second {
		t.Errorf("names %q / %q", first, second)
	}
	if got := sheetName("a/b:c", 3, used); got != "abc" {
		t.Errorf("invalid characters kept: %q", got)
	}
	if got := sheetName("", 4, used); got != "Table 4" {
		t.Errorf("empty title = %q", got)
	}
}
