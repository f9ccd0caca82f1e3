package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLExporter renders the report as a standalone HTML page. The body is
// sanitized with the bluemonday UGC policy.
type HTMLExporter struct{}

var markdownHTML = goldmark.New(goldmark.WithExtensions(extension.GFM))

const (
	htmlPrefix = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Literature Analysis Report</title>
<style>body{font-family:Calibri,Arial,sans-serif;max-width:56rem;margin:2rem auto;line-height:1.5}table{border-collapse:collapse}td,th{border:1px solid #999;padding:.25rem .5rem}</style>
</head>
<body>
`
	htmlSuffix = "</body>\n</html>\n"
)

func (HTMLExporter) Export(ctx context.Context, markdown string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := markdownHTML.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}
	clean := bluemonday.UGCPolicy().SanitizeBytes(body.Bytes())

	out := make([]byte, 0, len(htmlPrefix)+len(clean)+len(htmlSuffix))
	out = append(out, htmlPrefix...)
	out = append(out, clean...)
	out = append(out, htmlSuffix...)
	return out, nil
}

func (HTMLExporter) ContentType() string { return "text/html; charset=utf-8" }
func (HTMLExporter) Extension() string   { return ".html" }
