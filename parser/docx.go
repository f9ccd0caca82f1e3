package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXParser reads the body text of Word documents. Heading paragraphs are
// prefixed with Markdown hashes so the section structure reaches the model.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := docxText(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	return &ParseResult{
		Pages:  []Page{{Number: 1, Text: text}},
		Method: "native",
	}, nil
}

// DOCX XML structures (simplified). Body children are decoded in order so
// tables stay between the paragraphs around them.
type docxBody struct {
	Items []docxBlock `xml:",any"`
}

type docxBlock struct {
	XMLName xml.Name
	PPr     *docxParaPr `xml:"pPr"`
	Runs    []docxRun   `xml:"r"`
	Rows    []docxRow   `xml:"tr"`
}

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxPara struct {
	PPr  *docxParaPr `xml:"pPr"`
	Runs []docxRun   `xml:"r"`
}

type docxParaPr struct {
	PStyle *docxPStyle `xml:"pStyle"`
}

type docxPStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text []docxRunText `xml:"t"`
}

type docxRunText struct {
	Content string `xml:",chardata"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

func docxText(data []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, item := range doc.Body.Items {
		switch item.XMLName.Local {
		case "p":
			text := extractParaText(docxPara{PPr: item.PPr, Runs: item.Runs})
			if text == "" {
				continue
			}
			if level := headingStyleLevel(item.PPr); level > 0 {
				b.WriteString(strings.Repeat("#", level) + " ")
			}
			b.WriteString(text + "\n")
		case "tbl":
			for _, row := range item.Rows {
				cells := make([]string, 0, len(row.Cells))
				for _, cell := range row.Cells {
					var parts []string
					for _, p := range cell.Paras {
						if t := extractParaText(p); t != "" {
							parts = append(parts, t)
						}
					}
					cells = append(cells, strings.Join(parts, " "))
				}
				b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
			}
		}
	}
	return b.String(), nil
}

func extractParaText(para docxPara) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// headingStyleLevel returns 1-9 for Title/HeadingN paragraph styles and 0
// for everything else.
func headingStyleLevel(ppr *docxParaPr) int {
	if ppr == nil || ppr.PStyle == nil {
		return 0
	}
	lower := strings.ToLower(ppr.PStyle.Val)
	switch {
	case strings.HasPrefix(lower, "title"):
		return 1
	case !strings.HasPrefix(lower, "heading"):
		return 0
	}
	for i := 1; i <= 9; i++ {
		if strings.Contains(lower, fmt.Sprint(i)) {
			return i
		}
	}
	return 1
}
