package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser extracts page text with ledongthuc/pdf. pdfcpu validates the
// file first and supplies page count and document info. Files pdfcpu
// rejects still go through the text reader.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	meta := inspectPDF(path)

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]Page, 0, totalPages)
	chars := 0

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf: skipping page", "path", path, "page", i, "error", err)
			continue
		}
		chars += len(strings.TrimSpace(text))
		pages = append(pages, Page{Number: i, Text: text})
	}

	if chars == 0 {
		return nil, ErrNoText
	}

	return &ParseResult{
		Pages:    pages,
		Method:   "native",
		Metadata: meta,
	}, nil
}

// inspectPDF reads document info with pdfcpu. Failures are logged and an
// empty map is returned.
func inspectPDF(path string) map[string]string {
	meta := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		slog.Warn("pdf: validation failed, falling back to lenient extraction", "path", path, "error", err)
		return meta
	}

	meta["page_count"] = strconv.Itoa(pctx.PageCount)
	if pctx.Title != "" {
		meta["title"] = pctx.Title
	}
	if pctx.Author != "" {
		meta["author"] = pctx.Author
	}
	return meta
}
