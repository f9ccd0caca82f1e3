// Command litassist analyzes papers from the command line and converts
// reports between formats.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/litassist"
)

var (
	configPath string
	verbose    bool
	noHistory  bool
	timeout    time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "litassist",
	Short: "Literature assistant: structured analysis of research papers",
	Long: `litassist sends the text of a research paper to a language model,
composes the structured answer into a Markdown report and exports it as
Markdown, DOCX, XLSX or HTML.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not open the history database")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment overrides.
func loadConfig() (litassist.Config, error) {
	cfg := litassist.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = litassist.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if err := litassist.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if noHistory {
		cfg.HistoryEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openAssistant loads config and creates the assistant.
func openAssistant() (litassist.Assistant, litassist.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	a, err := litassist.New(cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("creating assistant: %w", err)
	}
	return a, cfg, nil
}
