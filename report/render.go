// Package report turns the structured model output into the Markdown
// literature-analysis report.
package report

import (
	"strings"

	"github.com/brunobiangulo/litassist/structured"
)

// maxDepth bounds recursion; anything nested deeper is rendered with
// structured.Text.
const maxDepth = 50

// Render converts v into Markdown at the given indentation level. Each
// level indents bullets and labels by two spaces.
func Render(v structured.Value, indent int) string {
	var r renderer
	r.value(v, indent, 0)
	return r.b.String()
}

type renderer struct {
	b strings.Builder
}

func pad(indent int) string {
	if indent <= 0 {
		return ""
	}
	return strings.Repeat("  ", indent)
}

func (r *renderer) value(v structured.Value, indent, depth int) {
	if depth > maxDepth {
		r.b.WriteString(structured.Text(v) + "\n\n")
		return
	}
	switch t := v.(type) {
	case structured.Sequence:
		r.sequence(t, indent, depth)
	case structured.Mapping:
		r.mapping(t, indent, depth)
	case nil, structured.Null:
		r.b.WriteString("N/A\n")
	default:
		r.b.WriteString(structured.Text(v) + "\n\n")
	}
}

func (r *renderer) sequence(seq structured.Sequence, indent, depth int) {
	if similarRecords(seq) {
		r.b.WriteString(Table(seq))
		return
	}
	r.items(seq, indent, depth)
}

// items renders mapping elements as nested blocks and every other element
// as a bullet.
func (r *renderer) items(seq structured.Sequence, indent, depth int) {
	p := pad(indent)
	for i, item := range seq {
		if m, ok := item.(structured.Mapping); ok && depth < maxDepth {
			if i > 0 {
				r.b.WriteString("\n")
			}
			r.mapping(m, indent+1, depth+1)
			continue
		}
		r.b.WriteString(p + "- " + structured.Text(item) + "\n")
	}
	r.b.WriteString("\n")
}

func (r *renderer) mapping(m structured.Mapping, indent, depth int) {
	p := pad(indent)
	for _, f := range m.Fields {
		label := p + "**" + Label(f.Key) + ":**"
		if depth >= maxDepth {
			r.b.WriteString(label + " " + structured.Text(f.Value) + "\n\n")
			continue
		}
		switch val := f.Value.(type) {
		case structured.Mapping:
			r.b.WriteString(label + "\n\n")
			r.mapping(val, indent+1, depth+1)
		case structured.Sequence:
			r.b.WriteString(label + "\n\n")
			if len(val) > 1 && allMappings(val) {
				r.b.WriteString(Table(val))
			} else {
				r.items(val, indent, depth+1)
			}
		default:
			r.b.WriteString(label + " " + structured.Text(f.Value) + "\n\n")
		}
	}
}

// Label is the display form of a mapping key: surrounding colons are
// dropped and an empty key reads "N/A".
func Label(key string) string {
	return strings.Trim(structured.Text(structured.String(key)), ":")
}

func allMappings(seq structured.Sequence) bool {
	for _, item := range seq {
		if _, ok := item.(structured.Mapping); !ok {
			return false
		}
	}
	return true
}

// similarRecords reports whether seq is a list of at least two mappings in
// which every element shares at least half of the first element's keys.
func similarRecords(seq structured.Sequence) bool {
	if len(seq) < 2 {
		return false
	}
	first, ok := seq[0].(structured.Mapping)
	if !ok {
		return false
	}
	firstKeys := make(map[string]bool, first.Len())
	for _, k := range first.Keys() {
		firstKeys[k] = true
	}
	for _, item := range seq[1:] {
		m, ok := item.(structured.Mapping)
		if !ok {
			return false
		}
		overlap := 0
		for _, k := range m.Keys() {
			if firstKeys[k] {
				overlap++
			}
		}
		if overlap*2 < len(firstKeys) {
			return false
		}
	}
	return true
}

// Table renders a list of mappings as a Markdown table. Columns are the
// union of all keys in first-seen order and missing cells read "N/A".
// Non-mapping elements are skipped.
func Table(rows structured.Sequence) string {
	var headers []string
	seen := make(map[string]bool)
	for _, row := range rows {
		m, ok := row.(structured.Mapping)
		if !ok {
			continue
		}
		for _, k := range m.Keys() {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	if len(headers) == 0 {
		return ""
	}

	var b strings.Builder
	escaped := make([]string, len(headers))
	rule := make([]string, len(headers))
	for i, h := range headers {
		escaped[i] = cell(h)
		rule[i] = "---"
	}
	b.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
	b.WriteString("| " + strings.Join(rule, " | ") + " |\n")

	for _, row := range rows {
		m, ok := row.(structured.Mapping)
		if !ok {
			continue
		}
		cells := make([]string, len(headers))
		for i, h := range headers {
			v, ok := m.Get(h)
			if !ok {
				cells[i] = "N/A"
				continue
			}
			cells[i] = cell(structured.Text(v))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
	return b.String()
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func cell(s string) string {
	return cellReplacer.Replace(s)
}
