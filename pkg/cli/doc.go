/*
Package cli provides command-line helpers for the minerva command.

Output Formatting:

Command results can be rendered as text, JSON, or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

CSV output requires the data to implement the Tabular interface; the
usage report types do.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	// ctx is cancelled on the first signal; a second signal terminates
	// the process through the default handler.
*/
package cli
