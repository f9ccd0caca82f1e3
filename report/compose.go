package report

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/litassist/structured"
)

// Section keys the analysis prompt asks the model to produce.
const (
	KeyCitation    = "1. Full Citation (APA 7th)"
	KeyQuestion    = "2. Core Research Question & Hypothesis(es)"
	KeyFramework   = "3. Theoretical Framework"
	KeyMethodology = "4. Methodology & Design"
	KeyFindings    = "5. Empirical Findings"
	KeyConclusions = "6. Authors' Stated Conclusions"
	KeyLimitations = "7. Authors' Stated Limitations"
	KeyAppraisal   = "8. [MY ANALYSIS] Critical Appraisal & Integration"
	KeyMetadata    = "9. Attributes and tags"
)

// TimestampLayout is the format of the "Generated" line.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	reportTitle  = "# 📖 Literature Analysis Report"
	reportFooter = "*Generated by Literature Assistant powered by AI*\n"
)

type section struct {
	key    string
	title  string
	render func(b *strings.Builder, v structured.Value)
}

var sections = []section{
	{KeyCitation, "## 📚 Full Citation", writeText},
	{KeyQuestion, "## 🎯 Research Question & Hypotheses", writeQuestion},
	{KeyFramework, "## 🧠 Theoretical Framework", writeText},
	{KeyMethodology, "## 🔬 Methodology & Design", writeMethodology},
	{KeyFindings, "## 📊 Empirical Findings", writeFindings},
	{KeyConclusions, "## 💡 Authors' Conclusions", writeText},
	{KeyLimitations, "## ⚠️ Limitations", writeLimitations},
	{KeyAppraisal, "## 🔍 Critical Appraisal & Integration", writeAppraisal},
	{KeyMetadata, "## 🏷️ Metadata & Tags", writeMetadata},
}

// Compose builds the report from a raw model completion. When no JSON
// object can be extracted the completion is embedded verbatim.
func Compose(raw string, at time.Time) string {
	v, err := structured.Parse(raw)
	if err != nil {
		return ComposeRaw(raw, at)
	}
	return ComposeValue(v, at)
}

// ComposeRaw wraps unparsed text in the report header and footer.
func ComposeRaw(raw string, at time.Time) string {
	var b strings.Builder
	writeHeader(&b, at)
	b.WriteString(strings.TrimSpace(raw))
	endSection(&b)
	b.WriteString(reportFooter)
	return b.String()
}

// ComposeValue renders the known sections of a parsed analysis in their
// fixed order, skipping absent ones. A value that is not a mapping is
// rendered generically.
func ComposeValue(v structured.Value, at time.Time) string {
	var b strings.Builder
	writeHeader(&b, at)

	m, ok := v.(structured.Mapping)
	if !ok {
		b.WriteString(Render(v, 0))
		endSection(&b)
		b.WriteString(reportFooter)
		return b.String()
	}

	for _, s := range sections {
		val, ok := m.Get(s.key)
		if !ok {
			continue
		}
		b.WriteString(s.title + "\n\n")
		s.render(&b, val)
		endSection(&b)
	}
	b.WriteString(reportFooter)
	return b.String()
}

func writeHeader(b *strings.Builder, at time.Time) {
	b.WriteString(reportTitle + "\n\n")
	b.WriteString("**Generated:** " + at.Format(TimestampLayout) + "\n\n")
	b.WriteString("---\n\n")
}

// endSection normalizes trailing whitespace to one blank line and writes
// the horizontal rule that closes every section.
func endSection(b *strings.Builder) {
	s := strings.TrimRight(b.String(), "\n")
	b.Reset()
	b.WriteString(s)
	b.WriteString("\n\n---\n\n")
}

func writeText(b *strings.Builder, v structured.Value) {
	b.WriteString(structured.Text(v) + "\n")
}

func writeQuestion(b *strings.Builder, v structured.Value) {
	m, ok := v.(structured.Mapping)
	if !ok {
		writeText(b, v)
		return
	}
	if q, ok := m.Get("Primary Question"); ok {
		b.WriteString("### Primary Research Question\n\n")
		b.WriteString(structured.Text(q) + "\n\n")
	}
	if h, ok := m.Get("Hypotheses"); ok && truthy(h) {
		b.WriteString("### Hypotheses\n\n")
		if seq, ok := h.(structured.Sequence); ok {
			for i, item := range seq {
				b.WriteString(strconv.Itoa(i+1) + ". " + structured.Text(item) + "\n")
			}
		} else {
			b.WriteString(structured.Text(h) + "\n")
		}
	}
}

func writeMethodology(b *strings.Builder, v structured.Value) {
	m, ok := v.(structured.Mapping)
	if !ok {
		writeText(b, v)
		return
	}
	for _, f := range m.Fields {
		b.WriteString("**" + f.Key + ":** ")
		if seq, ok := f.Value.(structured.Sequence); ok {
			b.WriteString("\n")
			for _, item := range seq {
				b.WriteString("- " + structured.Text(item) + "\n")
			}
		} else {
			b.WriteString(structured.Text(f.Value) + "\n")
		}
		b.WriteString("\n")
	}
}

func writeFindings(b *strings.Builder, v structured.Value) {
	switch t := v.(type) {
	case nil, structured.Null:
		b.WriteString("No findings available.\n")
	case structured.Sequence:
		switch {
		case allScalars(t):
			for _, item := range t {
				b.WriteString("- " + structured.Text(item) + "\n")
			}
		case similarRecords(t):
			b.WriteString(Table(t))
		default:
			for i, item := range t {
				if m, ok := item.(structured.Mapping); ok {
					b.WriteString(Render(m, 0))
					continue
				}
				b.WriteString(strconv.Itoa(i+1) + ". " + structured.Text(item) + "\n\n")
			}
		}
	case structured.Mapping:
		b.WriteString(Render(t, 0))
	default:
		writeText(b, v)
	}
}

func writeLimitations(b *strings.Builder, v structured.Value) {
	seq, ok := v.(structured.Sequence)
	if !ok {
		writeText(b, v)
		return
	}
	for _, item := range seq {
		b.WriteString("- " + structured.Text(item) + "\n")
	}
}

func writeAppraisal(b *strings.Builder, v structured.Value) {
	m, ok := v.(structured.Mapping)
	if !ok {
		writeText(b, v)
		return
	}
	for _, f := range m.Fields {
		b.WriteString("### " + f.Key + "\n\n")
		if seq, ok := f.Value.(structured.Sequence); ok {
			for _, item := range seq {
				b.WriteString("- " + structured.Text(item) + "\n")
			}
			b.WriteString("\n")
			continue
		}
		b.WriteString(structured.Text(f.Value) + "\n\n")
	}
}

// metadataField describes one line of the tags section. Keys are looked
// up both with and without a trailing colon.
type metadataField struct {
	key   string
	label string
	sep   string
}

var metadataFields = []metadataField{
	{key: "type", label: "Type"},
	{key: "year", label: "Year"},
	{key: "rating", label: "Rating"},
	{key: "journal", label: "Journal"},
	{key: "authors", label: "Authors", sep: ", "},
	{key: "topic/", label: "Topics", sep: " "},
	{key: "method/", label: "Methods", sep: " "},
	{key: "theory/", label: "Theory", sep: " "},
	{key: "population/", label: "Population", sep: " "},
}

func lookup(m structured.Mapping, key string) (structured.Value, bool) {
	if v, ok := m.Get(key + ":"); ok {
		return v, true
	}
	return m.Get(key)
}

func writeMetadata(b *strings.Builder, v structured.Value) {
	m, ok := v.(structured.Mapping)
	if !ok {
		writeText(b, v)
		return
	}
	for _, f := range metadataFields {
		val, ok := lookup(m, f.key)
		if !ok {
			continue
		}
		var text string
		switch {
		case f.key == "rating":
			text = ratingText(val)
		case f.sep != "":
			text = joinList(val, f.sep)
		default:
			text = structured.Text(val)
		}
		b.WriteString("**" + f.label + ":** " + text + "\n\n")
	}
}

func joinList(v structured.Value, sep string) string {
	seq, ok := v.(structured.Sequence)
	if !ok {
		return structured.Text(v)
	}
	parts := make([]string, len(seq))
	for i, item := range seq {
		parts[i] = structured.Text(item)
	}
	return strings.Join(parts, sep)
}

// maxStars caps the star string for out-of-range ratings.
const maxStars = 10

// ratingText renders "⭐⭐⭐⭐ (4/5)" for numeric ratings and the plain
// value otherwise.
func ratingText(v structured.Value) string {
	n, ok := ratingNumber(v)
	if !ok {
		return structured.Text(v)
	}
	stars := int(math.Trunc(n))
	stars = max(0, min(stars, maxStars))
	return strings.Repeat("⭐", stars) + " (" + structured.Text(v) + "/5)"
}

func ratingNumber(v structured.Value) (float64, bool) {
	var s string
	switch t := v.(type) {
	case structured.Number:
		s = string(t)
	case structured.String:
		s = strings.TrimSpace(string(t))
	default:
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func allScalars(seq structured.Sequence) bool {
	for _, item := range seq {
		if !structured.IsScalar(item) {
			return false
		}
	}
	return true
}

// truthy treats null, false, zero, blank strings and empty collections as
// absent.
func truthy(v structured.Value) bool {
	switch t := v.(type) {
	case nil, structured.Null:
		return false
	case structured.Bool:
		return bool(t)
	case structured.Number:
		n, err := strconv.ParseFloat(string(t), 64)
		return err != nil || n != 0
	case structured.String:
		return string(t) != ""
	case structured.Sequence:
		return len(t) > 0
	case structured.Mapping:
		return t.Len() > 0
	}
	return true
}
