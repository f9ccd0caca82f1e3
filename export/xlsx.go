package export

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter writes every Markdown table in the report to its own
// worksheet. A report without tables becomes a single "Report" sheet with
// one line per row.
type XLSXExporter struct{}

func (XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXExporter) Extension() string { return ".xlsx" }

// table is a Markdown table with the nearest preceding heading or bold
// label as its title.
type table struct {
	title string
	rows  [][]string
}

var (
	separatorCell = regexp.MustCompile(`^:?-{3,}:?$`)
	boldLabel     = regexp.MustCompile(`^\*\*(.+?):?\*\*`)
	invalidSheet  = strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "")
)

const maxSheetName = 31

func (XLSXExporter) Export(ctx context.Context, markdown string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	tables := markdownTables(markdown)
	if len(tables) == 0 {
		if err := f.SetSheetName("Sheet1", "Report"); err != nil {
			return nil, fmt.Errorf("naming sheet: %w", err)
		}
		row := 1
		for _, line := range strings.Split(markdown, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetCellValue("Report", cell, line); err != nil {
				return nil, fmt.Errorf("writing line %d: %w", row, err)
			}
			row++
		}
		if err := f.SetColWidth("Report", "A", "A", 120); err != nil {
			return nil, fmt.Errorf("sizing column: %w", err)
		}
	}

	used := make(map[string]bool)
	for i, t := range tables {
		name := sheetName(t.title, i+1, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("naming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("adding sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, t, header); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// numericCell reports whether a body cell should be stored as a number.
// NaN and infinities have no SpreadsheetML encoding and stay text.
func numericCell(val string) (float64, bool) {
	n, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func writeTable(f *excelize.File, sheet string, t table, headerStyle int) error {
	width := 0
	for r, row := range t.rows {
		width = max(width, len(row))
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			var v any = val
			if r > 0 {
				if n, ok := numericCell(val); ok {
					v = n
				}
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
			}
		}
	}
	if width == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(width, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 24)
}

// sheetName builds a unique worksheet name within Excel's limits.
func sheetName(title string, n int, used map[string]bool) string {
	base := strings.TrimSpace(invalidSheet.Replace(title))
	if base == "" {
		base = "Table " + strconv.Itoa(n)
	}
	if r := []rune(base); len(r) > maxSheetName {
		base = string(r[:maxSheetName])
	}
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := " " + strconv.Itoa(i)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// markdownTables extracts pipe tables, dropping the separator row.
func markdownTables(markdown string) []table {
	var (
		tables []table
		cur    *table
		title  string
	)
	flush := func() {
		if cur != nil && len(cur.rows) > 0 {
			tables = append(tables, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "|") {
			if cur == nil {
				cur = &table{title: title}
			}
			cells := splitRow(line)
			if isSeparator(cells) {
				continue
			}
			cur.rows = append(cur.rows, cells)
			continue
		}
		flush()
		switch {
		case strings.HasPrefix(line, "#"):
			title = strings.TrimSpace(strings.TrimLeft(line, "#"))
		case boldLabel.MatchString(line):
			title = boldLabel.FindStringSubmatch(line)[1]
		}
	}
	flush()
	return tables
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if !separatorCell.MatchString(c) {
			return false
		}
	}
	return len(cells) > 0
}
