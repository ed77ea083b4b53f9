package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/minerva/pkg/cli"
	"mercator-hq/minerva/pkg/config"
	"mercator-hq/minerva/pkg/ledger"
	"mercator-hq/minerva/pkg/meter"
)

var usageFlags struct {
	since    time.Duration
	from     string
	to       string
	provider string
	model    string
	engine   string
	endpoint string
	status   string
	format   string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Query recorded usage and cost",
	Long: `Aggregate the usage ledger by provider and model.

The ledger must use a persistent backend (sqlite). Time filters accept
either a relative window (--since 24h) or absolute RFC 3339 bounds
(--from / --to).

Examples:
  # Last 24 hours, all providers
  minerva usage --since 24h

  # One model, as CSV
  minerva usage --model o4-mini --format csv

  # A fixed window
  minerva usage --from 2026-08-01T00:00:00Z --to 2026-08-25T00:00:00Z`,
	RunE: runUsage,
}

var estimateFlags struct {
	model string
}

var estimateCmd = &cobra.Command{
	Use:   "estimate [text]",
	Short: "Estimate the token count of a prompt",
	Long: `Count the tokens a prompt would consume, using the tokenizer of the
given backend model. Reads from stdin when no text argument is given.

Examples:
  minerva usage estimate --model gpt-4o "What is the capital of France?"
  cat prompt.txt | minerva usage estimate --model gpt-4o`,
	RunE: runEstimate,
}

func init() {
	usageCmd.Flags().DurationVar(&usageFlags.since, "since", 0, "relative time window (e.g. 24h, 7h30m)")
	usageCmd.Flags().StringVar(&usageFlags.from, "from", "", "start of time window (RFC 3339)")
	usageCmd.Flags().StringVar(&usageFlags.to, "to", "", "end of time window (RFC 3339)")
	usageCmd.Flags().StringVar(&usageFlags.provider, "provider", "", "filter by provider name")
	usageCmd.Flags().StringVar(&usageFlags.model, "model", "", "filter by backend model")
	usageCmd.Flags().StringVar(&usageFlags.engine, "engine", "", "filter by reasoning engine (deep-think, ultra-think)")
	usageCmd.Flags().StringVar(&usageFlags.endpoint, "endpoint", "", "filter by API endpoint")
	usageCmd.Flags().StringVar(&usageFlags.status, "status", "", "filter by call status (ok, error)")
	usageCmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format (text, json, csv)")

	estimateCmd.Flags().StringVar(&estimateFlags.model, "model", "", "backend model whose tokenizer to use")
	_ = estimateCmd.MarkFlagRequired("model")

	usageCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if cfg.Ledger.Backend != "sqlite" {
		return cli.NewCommandError("usage",
			fmt.Errorf("ledger backend %q keeps no persisted usage; configure ledger.backend: sqlite", cfg.Ledger.Backend))
	}

	query, err := buildUsageQuery()
	if err != nil {
		return cli.NewCommandError("usage", err)
	}

	store, err := ledger.NewSQLiteStore(&ledger.SQLiteConfig{Path: cfg.Ledger.Path})
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("open ledger: %w", err))
	}
	defer store.Close() //nolint:errcheck

	rows, err := store.Totals(cmd.Context(), query)
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("query ledger: %w", err))
	}

	report := newUsageReport(rows)
	formatter := cli.NewFormatter(cli.OutputFormat(usageFlags.format))
	return formatter.FormatTo(cmd.OutOrStdout(), report)
}

// buildUsageQuery translates the command flags into a ledger query.
func buildUsageQuery() (*ledger.Query, error) {
	query := &ledger.Query{
		Provider: usageFlags.provider,
		Model:    usageFlags.model,
		Engine:   usageFlags.engine,
		Endpoint: usageFlags.endpoint,
		Status:   usageFlags.status,
	}

	if usageFlags.since != 0 && usageFlags.from != "" {
		return nil, fmt.Errorf("--since and --from are mutually exclusive")
	}
	if usageFlags.since != 0 {
		start := time.Now().Add(-usageFlags.since)
		query.StartTime = &start
	}
	if usageFlags.from != "" {
		start, err := time.Parse(time.RFC3339, usageFlags.from)
		if err != nil {
			return nil, fmt.Errorf("invalid --from value %q: %w", usageFlags.from, err)
		}
		query.StartTime = &start
	}
	if usageFlags.to != "" {
		end, err := time.Parse(time.RFC3339, usageFlags.to)
		if err != nil {
			return nil, fmt.Errorf("invalid --to value %q: %w", usageFlags.to, err)
		}
		query.EndTime = &end
	}
	return query, nil
}

// UsageReport is the aggregated result of a usage query, one entry per
// provider/model pair plus grand totals.
type UsageReport struct {
	Entries      []*ledger.TotalsRow `json:"entries"`
	TotalCalls   int64               `json:"total_calls"`
	TotalTokens  int64               `json:"total_tokens"`
	TotalCostUSD float64             `json:"total_cost_usd"`
}

func newUsageReport(entries []*ledger.TotalsRow) *UsageReport {
	report := &UsageReport{Entries: entries}
	for _, row := range entries {
		report.TotalCalls += row.Calls
		report.TotalTokens += row.Usage.InputTokens + row.Usage.OutputTokens
		report.TotalCostUSD += row.CostUSD
	}
	return report
}

// Header implements cli.Tabular.
func (r *UsageReport) Header() []string {
	return []string{"provider", "model", "calls", "input_tokens", "output_tokens", "cached_tokens", "reasoning_tokens", "cost_usd"}
}

// Rows implements cli.Tabular.
func (r *UsageReport) Rows() [][]string {
	out := make([][]string, 0, len(r.Entries))
	for _, row := range r.Entries {
		out = append(out, []string{
			row.Provider,
			row.Model,
			strconv.FormatInt(row.Calls, 10),
			strconv.FormatInt(row.Usage.InputTokens, 10),
			strconv.FormatInt(row.Usage.OutputTokens, 10),
			strconv.FormatInt(row.Usage.CachedTokens, 10),
			strconv.FormatInt(row.Usage.ReasoningTokens, 10),
			strconv.FormatFloat(row.CostUSD, 'f', 6, 64),
		})
	}
	return out
}

// String renders the report as an aligned text table.
func (r *UsageReport) String() string {
	if len(r.Entries) == 0 {
		return "No usage recorded for the given filters."
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCALLS\tINPUT\tOUTPUT\tCACHED\tREASONING\tCOST (USD)")
	for _, row := range r.Entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.6f\n",
			row.Provider, row.Model, row.Calls,
			row.Usage.InputTokens, row.Usage.OutputTokens,
			row.Usage.CachedTokens, row.Usage.ReasoningTokens,
			row.CostUSD)
	}
	fmt.Fprintf(w, "TOTAL\t\t%d\t%d tokens\t\t\t\t%.6f\n", r.TotalCalls, r.TotalTokens, r.TotalCostUSD)
	w.Flush() //nolint:errcheck
	return sb.String()
}

func runEstimate(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return cli.NewCommandError("usage estimate", fmt.Errorf("read stdin: %w", err))
		}
		text = string(data)
	}
	if text == "" {
		return cli.NewCommandError("usage estimate", fmt.Errorf("no text to estimate; pass an argument or pipe to stdin"))
	}

	count, err := meter.NewEstimator().CountText(estimateFlags.model, text)
	if err != nil {
		return cli.NewCommandError("usage estimate", fmt.Errorf("count tokens: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d tokens (%s)\n", count, estimateFlags.model)
	return nil
}
