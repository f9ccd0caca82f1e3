package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/litassist/export"
)

var (
	convertTo  string
	convertOut string
)

// convertCmd converts a Markdown report to another format.
var convertCmd = &cobra.Command{
	Use:   "convert <report.md>",
	Short: "Convert a Markdown report to docx, xlsx or html",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "docx", "Target format")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "Output file (default: input name with the format's extension)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	dst, size, err := convertFile(cmd.Context(), export.NewRegistry(), args[0], convertTo, convertOut)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", dst, humanize.Bytes(uint64(size)))
	return nil
}

func convertFile(ctx context.Context, reg *export.Registry, src, format, dst string) (string, int, error) {
	e, err := reg.Get(format)
	if err != nil {
		return "", 0, fmt.Errorf("%w (available: %s)", err, strings.Join(reg.Formats(), ", "))
	}
	md, err := os.ReadFile(src)
	if err != nil {
		return "", 0, fmt.Errorf("reading report: %w", err)
	}
	data, err := e.Export(ctx, string(md))
	if err != nil {
		return "", 0, fmt.Errorf("converting %s: %w", src, err)
	}
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + e.Extension()
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", 0, fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, len(data), nil
}
