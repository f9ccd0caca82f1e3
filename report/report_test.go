package report

import (
	"strings"
	"testing"
	"time"

	"github.com/brunobiangulo/litassist/structured"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func mustParse(t *testing.T, raw string) structured.Value {
	t.Helper()
	v, err := structured.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return v
}

func lines(s string) []string {
	return strings.Split(s, "\n")
}

// nextNonBlank returns the first non-empty line after the line equal to want.
func nextNonBlank(t *testing.T, md, want string) string {
	t.Helper()
	ls := lines(md)
	for i, l := range ls {
		if l != want {
			continue
		}
		for _, next := range ls[i+1:] {
			if strings.TrimSpace(next) != "" {
				return next
			}
		}
	}
	t.Fatalf("line %q not found in:\n%s", want, md)
	return ""
}

func TestComposeCitation(t *testing.T) {
	md := Compose(`{"1. Full Citation (APA 7th)": "Smith, J. (2020)."}`, fixedTime)

	if got := nextNonBlank(t, md, "## 📚 Full Citation"); got != "Smith, J. (2020)." {
		t.Errorf("line after citation heading = %q", got)
	}
	if !strings.HasPrefix(md, "# 📖 Literature Analysis Report\n\n**Generated:** 2024-03-09 14:05:07\n") {
		t.Errorf("unexpected header:\n%s", md)
	}
	if !strings.HasSuffix(md, "*Generated by Literature Assistant powered by AI*\n") {
		t.Errorf("missing footer:\n%s", md)
	}
}

func TestComposeFindingsTable(t *testing.T) {
	raw := `{"5. Empirical Findings": [{"Classifier":"SVM","Accuracy":0.77},{"Classifier":"LR","Accuracy":0.74}]}`
	md := Compose(raw, fixedTime)

	want := "| Classifier | Accuracy |\n| --- | --- |\n| SVM | 0.77 |\n| LR | 0.74 |\n"
	if !strings.Contains(md, want) {
		t.Errorf("expected findings table:\n%s\ngot:\n%s", want, md)
	}
}

func TestComposeRawFallback(t *testing.T) {
	md := Compose("Error: no data", fixedTime)
	if !strings.Contains(md, "Error: no data") {
		t.Errorf("raw text missing from fallback report:\n%s", md)
	}
	if strings.Contains(md, "## ") {
		t.Errorf("fallback report should not contain section headings:\n%s", md)
	}
}

func TestRenderNullBecomesNA(t *testing.T) {
	v := mustParse(t, `{"Sample": null, "Nested": {"Effect": null}}`)
	md := Render(v, 0)

	if !strings.Contains(md, "**Sample:** N/A") {
		t.Errorf("null entry not rendered as N/A:\n%s", md)
	}
	if !strings.Contains(md, "  **Effect:** N/A") {
		t.Errorf("nested null not rendered as N/A:\n%s", md)
	}
	if strings.Contains(md, "null") {
		t.Errorf("literal null leaked into output:\n%s", md)
	}
}

func TestRenderScalarsAndLists(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"scalar list", `{"x": ["a", 2, true]}`, "**x:**\n\n- a\n- 2\n- Yes\n\n"},
		{"colon trimmed from key", `{"Sample size:": 40}`, "**Sample size:** 40\n\n"},
		{"nested mapping indents", `{"a": {"b": "c"}}`, "**a:**\n\n  **b:** c\n\n"},
		{"blank string", `{"a": "  "}`, "**a:** N/A\n\n"},
		{
			"mixed list",
			`{"x": ["note", {"k": "v"}]}`,
			"**x:**\n\n- note\n\n  **k:** v\n\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(mustParse(t, tt.raw), 0)
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTopLevelScalars(t *testing.T) {
	if got := Render(structured.Null{}, 0); got != "N/A\n" {
		t.Errorf("Render(null) = %q", got)
	}
	if got := Render(structured.Number("3.5"), 0); got != "3.5\n\n" {
		t.Errorf("Render(number) = %q", got)
	}
}

func TestTableProperties(t *testing.T) {
	v := mustParse(t, `[{"a": "x|y", "b": 1}, {"b": 2, "c": "line1\nline2"}, {"a": "z"}]`)
	seq := v.(structured.Sequence)
	tbl := Table(seq)
	ls := strings.Split(strings.TrimRight(tbl, "\n"), "\n")

	if ls[0] != "| a | b | c |" {
		t.Errorf("header = %q", ls[0])
	}
	if ls[1] != "| --- | --- | --- |" {
		t.Errorf("separator = %q", ls[1])
	}
	if got := len(ls) - 2; got != len(seq) {
		t.Errorf("data rows = %d, want %d", got, len(seq))
	}
	if ls[2] != `| x\|y | 1 | N/A |` {
		t.Errorf("row 1 = %q", ls[2])
	}
	if ls[3] != "| N/A | 2 | line1 line2 |" {
		t.Errorf("row 2 = %q", ls[3])
	}
	if ls[4] != "| z | N/A | N/A |" {
		t.Errorf("row 3 = %q", ls[4])
	}
}

func TestSimilarRecordsThreshold(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"half the keys shared", `[{"a":1,"b":2,"c":3,"d":4},{"a":1,"b":2}]`, true},
		{"less than half shared", `[{"a":1,"b":2,"c":3,"d":4},{"a":1,"z":2}]`, false},
		{"single element", `[{"a":1}]`, false},
		{"non-mapping element", `[{"a":1},"x"]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := mustParse(t, `{"v":`+tt.raw+`}`).(structured.Mapping).Fields[0].Value.(structured.Sequence)
			if got := similarRecords(seq); got != tt.want {
				t.Errorf("similarRecords = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComposeKeepsSectionOrder(t *testing.T) {
	raw := `{
		"9. Attributes and tags": {"type:": "article"},
		"3. Theoretical Framework": "Social learning theory",
		"1. Full Citation (APA 7th)": "Doe, A. (2021).",
		"unknown": "ignored"
	}`
	md := Compose(raw, fixedTime)

	citation := strings.Index(md, "## 📚 Full Citation")
	framework := strings.Index(md, "## 🧠 Theoretical Framework")
	tags := strings.Index(md, "## 🏷️ Metadata & Tags")
	if citation < 0 || framework < 0 || tags < 0 {
		t.Fatalf("missing sections:\n%s", md)
	}
	if !(citation < framework && framework < tags) {
		t.Errorf("sections out of order: %d %d %d", citation, framework, tags)
	}
	if strings.Contains(md, "ignored") {
		t.Errorf("unknown key rendered:\n%s", md)
	}
	if n := strings.Count(md, "\n---\n"); n != 4 {
		t.Errorf("rules = %d, want 4 (header plus three sections)", n)
	}
}

func TestComposeQuestionSection(t *testing.T) {
	raw := `{"2. Core Research Question & Hypothesis(es)": {
		"Primary Question": "Does X cause Y?",
		"Hypotheses": ["H1: X raises Y", "H2: Z moderates"]
	}}`
	md := Compose(raw, fixedTime)

	for _, want := range []string{
		"### Primary Research Question\n\nDoes X cause Y?",
		"### Hypotheses\n\n1. H1: X raises Y\n2. H2: Z moderates",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}

	md = Compose(`{"2. Core Research Question & Hypothesis(es)": {"Primary Question": "Q", "Hypotheses": []}}`, fixedTime)
	if strings.Contains(md, "### Hypotheses") {
		t.Errorf("empty hypotheses rendered:\n%s", md)
	}
}

func TestComposeMetadata(t *testing.T) {
	raw := `{"9. Attributes and tags": {
		"type:": "journal-article",
		"year": 2019,
		"rating:": 4,
		"authors:": ["Smith", "Lee"],
		"topic/": ["#ml", "#nlp"]
	}}`
	md := Compose(raw, fixedTime)

	for _, want := range []string{
		"**Type:** journal-article",
		"**Year:** 2019",
		"**Rating:** ⭐⭐⭐⭐ (4/5)",
		"**Authors:** Smith, Lee",
		"**Topics:** #ml #nlp",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
}

func TestRatingText(t *testing.T) {
	tests := []struct {
		in   structured.Value
		want string
	}{
		{structured.Number("3"), "⭐⭐⭐ (3/5)"},
		{structured.String("5"), "⭐⭐⭐⭐⭐ (5/5)"},
		{structured.Number("-2"), " (-2/5)"},
		{structured.Number("400"), strings.Repeat("⭐", maxStars) + " (400/5)"},
		{structured.String("excellent"), "excellent"},
		{structured.Null{}, "N/A"},
	}
	for _, tt := range tests {
		if got := ratingText(tt.in); got != tt.want {
			t.Errorf("ratingText(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComposeFindingsVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"null", `{"5. Empirical Findings": null}`, "No findings available."},
		{"scalar list", `{"5. Empirical Findings": ["r = .4", "p < .05"]}`, "- r = .4\n- p < .05"},
		{"mixed list numbered", `{"5. Empirical Findings": ["first", ["nested"]]}`, "1. first\n\n2. [\"nested\"]"},
		{"mapping", `{"5. Empirical Findings": {"Effect": "large"}}`, "**Effect:** large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := Compose(tt.raw, fixedTime)
			if !strings.Contains(md, tt.want) {
				t.Errorf("missing %q in:\n%s", tt.want, md)
			}
		})
	}
}

func TestRenderDepthBounded(t *testing.T) {
	raw := strings.Repeat(`{"k":`, 200) + `"leaf"` + strings.Repeat("}", 200)
	md := Render(mustParse(t, raw), 0)
	if !strings.Contains(md, "leaf") {
		t.Errorf("deep leaf lost")
	}
}

func TestRenderPreservesKeyOrder(t *testing.T) {
	md := Render(mustParse(t, `{"zulu": 1, "alpha": 2, "mike": 3}`), 0)
	z, a, m := strings.Index(md, "zulu"), strings.Index(md, "alpha"), strings.Index(md, "mike")
	if !(z < a && a < m) {
		t.Errorf("key order not preserved:\n%s", md)
	}
}

func mustDecode(t *testing.T, doc string) structured.Value {
	t.Helper()
	v, err := structured.Decode(doc)
	if err != nil {
		t.Fatalf("decoding %q: %v", doc, err)
	}
	return v
}

func TestRenderNestedKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "three mapping levels",
			doc:  `{"zulu": {"yankee": {"x-ray": 1, "alpha": 2}, "bravo": 3}, "charlie": 4}`,
			want: "**zulu:**\n\n" +
				"  **yankee:**\n\n" +
				"    **x-ray:** 1\n\n" +
				"    **alpha:** 2\n\n" +
				"  **bravo:** 3\n\n" +
				"**charlie:** 4\n\n",
		},
		{
			name: "mapping inside a list inside a mapping",
			doc:  `{"outer": {"list": [{"k2": "a", "k1": "b"}], "z": 1}}`,
			want: "**outer:**\n\n" +
				"  **list:**\n\n" +
				"    **k2:** a\n\n" +
				"    **k1:** b\n\n" +
				"\n" +
				"  **z:** 1\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(mustDecode(t, tt.doc), 0); got != tt.want {
				t.Errorf("Render =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderMappingValueTableIgnoresOverlap(t *testing.T) {
	got := Render(mustDecode(t, `{"results": [{"a": 1, "b": 2}, {"c": 3, "d": 4}]}`), 0)
	want := "**results:**\n\n" +
		"| a | b | c | d |\n" +
		"| --- | --- | --- | --- |\n" +
		"| 1 | 2 | N/A | N/A |\n" +
		"| N/A | N/A | 3 | 4 |\n\n"
	if got != want {
		t.Errorf("Render =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderTopLevelRecords(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "dissimilar records become blocks",
			doc:  `[{"a": 1, "b": 2}, {"c": 3}]`,
			want: "  **a:** 1\n\n  **b:** 2\n\n" +
				"\n" +
				"  **c:** 3\n\n" +
				"\n",
		},
		{
			name: "half overlap becomes a table",
			doc:  `[{"a": 1, "b": 2}, {"a": 3}]`,
			want: "| a | b |\n| --- | --- |\n| 1 | 2 |\n| 3 | N/A |\n\n",
		},
		{
			name: "mixed items",
			doc:  `[1, {"a": 2}, "x", null]`,
			want: "- 1\n" +
				"\n  **a:** 2\n\n" +
				"- x\n" +
				"- N/A\n" +
				"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(mustDecode(t, tt.doc), 0); got != tt.want {
				t.Errorf("Render =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderTotal(t *testing.T) {
	deepRecords := strings.Repeat(`[{"k":`, 120) + `"leaf"` + strings.Repeat("}]", 120)
	deepLists := strings.Repeat("[", 200) + `"leaf"` + strings.Repeat("]", 200)

	tests := []struct {
		name     string
		doc      string
		contains string
	}{
		{"null", `null`, "N/A"},
		{"bool", `true`, "Yes"},
		{"exponent", `1e-3`, "0.001"},
		{"blank string", `"  "`, "N/A"},
		{"empty sequence", `[]`, ""},
		{"empty mapping", `{}`, ""},
		{"empty records", `[{},{}]`, ""},
		{"empty records under key", `{"a": [{}, {}]}`, "**a:**"},
		{"empty mapping under key", `{"a": {}}`, "**a:**"},
		{"empty sequence under key", `{"a": []}`, "**a:**"},
		{"nested sequences", `[[1, [2, [3]]]]`, "[1,[2,[3]]]"},
		{"deep records", deepRecords, "leaf"},
		{"deep lists", deepLists, "leaf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustDecode(t, tt.doc)
			first := Render(v, 0)
			if second := Render(v, 0); first != second {
				t.Errorf("output differs between runs")
			}
			if !strings.Contains(first, tt.contains) {
				t.Errorf("output missing %q:\n%s", tt.contains, first)
			}
			if strings.Contains(first, "null") {
				t.Errorf("literal null in output:\n%s", first)
			}
		})
	}
}
