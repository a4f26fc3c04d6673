/*
Package cli provides helpers shared by the turnstile commands.

Output Formatting:

Results are written as aligned text, JSON or CSV. Types that implement
Tabular can be printed in all three:

	format, err := cli.ParseFormat(flags.output, os.Stdout)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Errors and Exit Codes:

Commands return ConfigError, UsageError or CommandError; ExitCode maps
them to the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
