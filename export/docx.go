package export

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/litassist/docx"
)

// DOCXExporter converts the report into a Word document.
type DOCXExporter struct{}

func (DOCXExporter) Export(ctx context.Context, markdown string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := docx.FromMarkdown(markdown)
	if err != nil {
		return nil, fmt.Errorf("building docx: %w", err)
	}
	return data, nil
}

func (DOCXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func (DOCXExporter) Extension() string { return ".docx" }
