package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "minerva",
	Short: "Minerva - reasoning orchestration service for LLM backends",
	Long: `Minerva drives structured reasoning loops over heterogeneous LLM backends
and serves them behind a stable HTTP surface.

It provides:
  - DeepThink: single-agent iterative solve/verify/correct reasoning
  - UltraThink: multi-agent fan-out with answer synthesis
  - Provider abstraction with capability negotiation (OpenAI, Anthropic, generic)
  - Prefix caching of provider conversation state
  - Rate limiting, token metering, cost tracking and a usage ledger`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "minerva.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
