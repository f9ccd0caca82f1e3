// Package parser extracts plain text from the documents submitted for
// analysis.
package parser

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrNoText is returned when a document parses but yields no text, which
// usually means a scanned PDF without a text layer.
var ErrNoText = errors.New("parser: no text could be extracted")

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Pages    []Page // In document order; empty pages are kept
	Method   string // "native"
	Metadata map[string]string
}

// Page is the text of a single page. Plain text files are one page.
type Page struct {
	Number int
	Text   string
}

// Text joins the pages, each followed by a newline.
func (r *ParseResult) Text() string {
	var b strings.Builder
	for _, p := range r.Pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// FormatOf returns the lower-cased extension of path without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
