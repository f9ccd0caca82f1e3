// Package export turns a Markdown report into downloadable files.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownFormat is returned by Registry.Get for unregistered formats.
var ErrUnknownFormat = errors.New("export: unknown format")

// Exporter renders Markdown into one file format.
type Exporter interface {
	Export(ctx context.Context, markdown string) ([]byte, error)
	ContentType() string
	Extension() string
}

// Registry maps format names to exporters.
type Registry struct {
	exporters map[string]Exporter
}

// NewRegistry returns a registry with the built-in markdown, docx, xlsx
// and html exporters.
func NewRegistry() *Registry {
	r := &Registry{exporters: make(map[string]Exporter)}
	r.Register("markdown", MarkdownExporter{})
	r.Register("docx", DOCXExporter{})
	r.Register("xlsx", XLSXExporter{})
	r.Register("html", HTMLExporter{})
	return r
}

func (r *Registry) Get(format string) (Exporter, error) {
	e, ok := r.exporters[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return e, nil
}

func (r *Registry) Register(format string, e Exporter) {
	r.exporters[strings.ToLower(format)] = e
}

// Formats lists the registered format names in sorted order.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filename derives a safe download name with the given extension. Path
// components are discarded and an empty name becomes "analysis".
func Filename(name, ext string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f, strings.ContainsRune(`"<>:|?*/`, r):
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "analysis"
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return name
}

// MarkdownExporter returns the report unchanged.
type MarkdownExporter struct{}

func (MarkdownExporter) Export(_ context.Context, markdown string) ([]byte, error) {
	return []byte(markdown), nil
}

func (MarkdownExporter) ContentType() string { return "text/markdown" }
func (MarkdownExporter) Extension() string   { return ".md" }
