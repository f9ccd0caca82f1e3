package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/litassist"
	"github.com/brunobiangulo/litassist/llm"
)

// checkCmd verifies that an LLM provider is usable.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify provider and API key configuration",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !reportCheck(cmd.OutOrStdout(), cfg) {
		return fmt.Errorf("provider %s is not configured", cfg.LLM.Provider)
	}
	return nil
}

// reportCheck prints the configuration summary and reports whether the
// provider can be used.
func reportCheck(w io.Writer, cfg litassist.Config) bool {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "Provider: %s\n", cfg.LLM.Provider)
	fmt.Fprintf(w, "Model:    %s\n", cfg.LLM.Model)
	if cfg.LLM.BaseURL != "" {
		fmt.Fprintf(w, "Base URL: %s\n", cfg.LLM.BaseURL)
	}

	switch {
	case !llm.RequiresAPIKey(cfg.LLM.Provider):
		fmt.Fprintf(w, "%s %s does not need an API key\n", ok("✓"), cfg.LLM.Provider)
		return true
	case cfg.LLM.APIKey != "":
		fmt.Fprintf(w, "%s API key configured\n", ok("✓"))
		return true
	default:
		fmt.Fprintf(w, "%s API key not found. Set OPENAI_API_KEY or LITASSIST_API_KEY in the environment or .env\n", bad("✗"))
		return false
	}
}
