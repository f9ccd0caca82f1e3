package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// TextParser handles plain text and Markdown files, mainly for re-running
// an analysis on text that was already extracted.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	if !utf8.Valid(data) {
		data = []byte(strings.ToValidUTF8(string(data), "\uFFFD"))
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrNoText
	}

	return &ParseResult{
		Pages:  []Page{{Number: 1, Text: string(data)}},
		Method: "native",
	}, nil
}
