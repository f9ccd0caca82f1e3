package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/litassist/store"
)

var (
	historyLimit     int
	historyShow      int64
	historyPruneDays int
)

// historyCmd lists, shows and prunes stored analyses.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analyses",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of analyses to list")
	historyCmd.Flags().Int64Var(&historyShow, "show", 0, "Render the analysis with this ID")
	historyCmd.Flags().IntVar(&historyPruneDays, "prune-days", 0, "Delete analyses older than this many days")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, _, err := openAssistant()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case historyShow > 0:
		rec, err := a.Get(ctx, historyShow)
		if err != nil {
			return err
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		out, err := r.Render(rec.Markdown)
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
		return nil

	case historyPruneDays > 0:
		n, err := a.Prune(ctx, time.Now().AddDate(0, 0, -historyPruneDays))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed %d analyses\n", n)
		return nil
	}

	list, err := a.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	writeHistory(w, list)
	if stats, err := a.Stats(ctx); err == nil {
		fmt.Fprintf(w, "\n%d analyses of %d documents\n", stats.Analyses, stats.Documents)
	}
	return nil
}

func writeHistory(w io.Writer, list []store.Analysis) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No analyses stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFILE\tMODEL\tPARSED")
	for _, a := range list {
		parsed := "yes"
		if !a.Parsed {
			parsed = "no"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s/%s\t%s\n", a.ID, a.CreatedAt, a.Filename, a.Provider, a.Model, parsed)
	}
	tw.Flush()
}
