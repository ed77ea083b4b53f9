package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"mercator-hq/minerva/pkg/cli"
	"mercator-hq/minerva/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply environment overrides, and run every
validation rule. All violations are reported together, not just the first.

Examples:
  # Validate the default config file
  minerva validate

  # Validate a specific file
  minerva validate --config /etc/minerva/minerva.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "✗ %s is invalid\n\n", cfgFile)
			for _, fe := range verr.Errors {
				fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
			}
			return cli.NewConfigError("", fmt.Sprintf("%d validation errors", len(verr.Errors)))
		}
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	fmt.Fprintf(out, "✓ %s is valid\n", cfgFile)
	fmt.Fprintf(out, "  server:    %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "  providers: %d\n", len(cfg.Providers))

	ids := make([]string, 0, len(cfg.Models))
	for id := range cfg.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(out, "  models:    %d\n", len(ids))
	if verbose {
		for _, id := range ids {
			mc := cfg.Models[id]
			fmt.Fprintf(out, "    %s -> %s/%s (%s)\n", id, mc.Provider, mc.Model, mc.Level)
		}
	}

	fmt.Fprintf(out, "  cache:     %s (enabled=%t)\n", cfg.Cache.Backend, cfg.Cache.Enabled)
	fmt.Fprintf(out, "  ledger:    %s (enabled=%t)\n", cfg.Ledger.Backend, cfg.Ledger.Enabled)
	return nil
}
