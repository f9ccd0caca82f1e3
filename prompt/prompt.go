// Package prompt holds the analysis instructions sent to the model.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed analysis.md
var defaultTemplate string

// SystemInstruction is the system message for every analysis request.
const SystemInstruction = "You are a research methodologist and domain expert specializing in analyzing academic papers."

// Default returns the built-in analysis template.
func Default() string { return defaultTemplate }

// Load reads the template at path, or returns the built-in one when path
// is empty.
func Load(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt template %s is empty", path)
	}
	return string(data), nil
}

// Build appends the document text to the template under an INPUT marker.
func Build(template, text string) string {
	return template + "\n\n**INPUT:**\n" + text
}
