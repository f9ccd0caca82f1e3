package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/litassist"
)

var (
	analyzeOutDir      string
	analyzeFormats     []string
	analyzePrint       bool
	analyzeConcurrency int
	analyzeForce       bool
)

// analyzeCmd analyzes one or more papers.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze papers and write the reports",
	Long: `Analyze one or more PDF (or text) files. For every input a report is
written to the output directory in each requested format, named after the
input file. Inputs sharing a name get a numeric suffix (paper, paper-2).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutDir, "out", "o", ".", "Output directory")
	analyzeCmd.Flags().StringSliceVarP(&analyzeFormats, "format", "f", []string{"markdown", "docx"}, "Export formats")
	analyzeCmd.Flags().BoolVarP(&analyzePrint, "print", "p", false, "Render the report in the terminal")
	analyzeCmd.Flags().IntVarP(&analyzeConcurrency, "concurrency", "j", 2, "Files analyzed in parallel")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "Analyze again even if a stored analysis exists")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, _, err := openAssistant()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Configured() {
		return litassist.ErrLLMUnavailable
	}
	if err := os.MkdirAll(analyzeOutDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var opts []litassist.AnalyzeOption
	if analyzeForce {
		opts = append(opts, litassist.WithForceAnalyze())
	}

	var printer func(string) (string, error)
	if analyzePrint {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("creating renderer: %w", err)
		}
		printer = r.Render
	}

	failed := analyzeFiles(ctx, a, cmd.OutOrStdout(), args, opts, printer)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// analyzeFiles runs the analyses concurrently and writes the reports.
// Output lines are serialized. Returns the number of failed files.
func analyzeFiles(ctx context.Context, a litassist.Assistant, w io.Writer, paths []string,
	opts []litassist.AnalyzeOption, printer func(string) (string, error)) int {
	var (
		mu     sync.Mutex
		failed atomic.Int32
	)
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	bases := outputBases(paths)
	g := new(errgroup.Group)
	g.SetLimit(max(1, analyzeConcurrency))
	for i, path := range paths {
		g.Go(func() error {
			written, err := analyzeOne(ctx, a, path, bases[i], opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed.Add(1)
				fmt.Fprintf(w, "%s %s: %v\n", bad("✗"), path, err)
				return nil
			}
			for _, f := range written {
				fmt.Fprintf(w, "%s %s (%s)\n", ok("✓"), f.path, humanize.Bytes(uint64(f.size)))
			}
			if printer != nil && len(written) > 0 {
				out, err := printer(written[0].markdown)
				if err == nil {
					fmt.Fprint(w, out)
				}
			}
			return nil
		})
	}
	g.Wait()
	return int(failed.Load())
}

type writtenFile struct {
	path     string
	size     int
	markdown string
}

// outputBases names each input's reports after its file name. Inputs that
// share a name get a numeric suffix in argument order.
func outputBases(paths []string) []string {
	bases := make([]string, len(paths))
	used := make(map[string]bool, len(paths))
	for i, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		name := stem
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		used[name] = true
		bases[i] = name
	}
	return bases
}

func analyzeOne(ctx context.Context, a litassist.Assistant, path, base string, opts []litassist.AnalyzeOption) ([]writtenFile, error) {
	res, err := a.Analyze(ctx, path, opts...)
	if err != nil {
		return nil, err
	}

	var out []writtenFile
	for _, format := range analyzeFormats {
		exp, err := a.Export(ctx, res.Markdown, format)
		if err != nil {
			return out, err
		}
		dst := filepath.Join(analyzeOutDir, base+exp.Extension)
		if err := os.WriteFile(dst, exp.Data, 0644); err != nil {
			return out, fmt.Errorf("writing %s: %w", dst, err)
		}
		out = append(out, writtenFile{path: dst, size: len(exp.Data), markdown: res.Markdown})
	}
	return out, nil
}
