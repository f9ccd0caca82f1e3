// Package docx converts report Markdown into a WordprocessingML (.docx)
// document.
package docx

import (
	"regexp"
	"strings"
	"unicode"
)

// BlockKind identifies a document block.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading
	BulletItem
	NumberedItem
	Rule
)

func (k BlockKind) String() string {
	switch k {
	case Heading:
		return "heading"
	case BulletItem:
		return "bullet"
	case NumberedItem:
		return "numbered"
	case Rule:
		return "rule"
	default:
		return "paragraph"
	}
}

// Style is the character formatting of a Run.
type Style int

const (
	Plain Style = iota
	Bold
	Italic
)

// Run is a span of text with a single style.
type Run struct {
	Text  string
	Style Style
}

// Block is one paragraph-level element. Level is set for headings (1-4).
type Block struct {
	Kind  BlockKind
	Level int
	Runs  []Run
}

// Text concatenates the block's runs.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Document is an ordered list of blocks.
type Document struct {
	Title  string
	Blocks []Block
}

// lineRule classifies one trimmed, non-empty Markdown line. Rules are
// evaluated in order and the first match wins.
type lineRule struct {
	name  string
	match func(line string) bool
	build func(line string) Block
}

var (
	numberedPrefix = regexp.MustCompile(`^\d+\.\s+`)
	boldSpan       = regexp.MustCompile(`\*\*.*?\*\*`)
)

var lineRules = []lineRule{
	{
		name:  "heading",
		match: func(line string) bool { return headingLevel(line) > 0 },
		build: func(line string) Block {
			level := headingLevel(line)
			text := stripGlyphs(line[level+1:])
			return Block{Kind: Heading, Level: level, Runs: []Run{{Text: text, Style: Plain}}}
		},
	},
	{
		name:  "rule",
		match: func(line string) bool { return len(line) >= 3 && strings.Trim(line, "-") == "" },
		build: func(string) Block { return Block{Kind: Rule} },
	},
	{
		name:  "bullet",
		match: func(line string) bool { return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") },
		build: func(line string) Block {
			return Block{Kind: BulletItem, Runs: InlineRuns(strings.TrimSpace(line[2:]))}
		},
	},
	{
		name:  "numbered",
		match: numberedPrefix.MatchString,
		build: func(line string) Block {
			return Block{Kind: NumberedItem, Runs: InlineRuns(numberedPrefix.ReplaceAllString(line, ""))}
		},
	},
	{
		name: "italic",
		match: func(line string) bool {
			return len(line) >= 2 && line[0] == '*' && line[1] != '*' && strings.HasSuffix(line, "*")
		},
		build: func(line string) Block {
			return Block{Kind: Paragraph, Runs: []Run{{Text: strings.TrimSpace(line[1 : len(line)-1]), Style: Italic}}}
		},
	},
	{
		name:  "paragraph",
		match: func(string) bool { return true },
		build: func(line string) Block { return Block{Kind: Paragraph, Runs: InlineRuns(line)} },
	},
}

// headingLevel returns 1-4 for "# " through "#### " prefixes and 0
// otherwise.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 4 || n >= len(line) || line[n] != ' ' {
		return 0
	}
	return n
}

// pictographs covers the emoji blocks, the miscellaneous symbol and
// dingbat blocks, the star and circle emoji, the keycap mark, variation
// selectors and the zero width joiner.
var pictographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200D, Hi: 0x200D, Stride: 1},
		{Lo: 0x20E3, Hi: 0x20E3, Stride: 1},
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1},
		{Lo: 0x2B50, Hi: 0x2B55, Stride: 5},
		{Lo: 0xFE0E, Hi: 0xFE0F, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1FAFF, Stride: 1},
	},
}

// stripGlyphs removes the emoji used to decorate headings. Other symbols
// such as degree or copyright signs are kept.
func stripGlyphs(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.Is(pictographs, r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// InlineRuns splits text on **bold** spans. Only the delimiting asterisks
// are dropped; empty runs are omitted.
func InlineRuns(text string) []Run {
	var runs []Run
	add := func(s string, style Style) {
		if s != "" {
			runs = append(runs, Run{Text: s, Style: style})
		}
	}
	last := 0
	for _, loc := range boldSpan.FindAllStringIndex(text, -1) {
		add(text[last:loc[0]], Plain)
		add(strings.Trim(text[loc[0]:loc[1]], "*"), Bold)
		last = loc[1]
	}
	add(text[last:], Plain)
	return runs
}

// Convert classifies each line of markdown into a Block. Blank lines are
// skipped; nothing else is dropped.
func Convert(markdown string) *Document {
	doc := &Document{}
	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		for _, rule := range lineRules {
			if rule.match(line) {
				doc.Blocks = append(doc.Blocks, rule.build(line))
				break
			}
		}
	}
	for _, b := range doc.Blocks {
		if b.Kind == Heading && b.Level == 1 {
			doc.Title = b.Text()
			break
		}
	}
	return doc
}
