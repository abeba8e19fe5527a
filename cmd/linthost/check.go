package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/linthost/internal/diagnostics"
	"github.com/dshills/linthost/internal/lint"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		noColor bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Check files once and print their diagnostics",
		Long: `Check runs every configured tool against each file in order and prints
one line per diagnostic. Files without one of the lint.extensions are
skipped with a warning. The exit status is 1 when any error is reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newOutput(cmd, format, noColor)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts, out)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			results, err := a.Check(cmd.Context(), args)
			if console, ok := out.(*diagnostics.Console); ok {
				console.PrintSummary(len(results))
			}
			if err != nil {
				return err
			}

			if errs, _ := out.Counts(); errs > 0 {
				return errFoundErrors
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")
	return cmd
}

// countingSink is a sink that reports what it printed.
type countingSink interface {
	lint.Sink
	Counts() (errors, warnings int)
}

func newOutput(cmd *cobra.Command, format string, noColor bool) (countingSink, error) {
	switch format {
	case "text":
		var consoleOpts []diagnostics.ConsoleOption
		if noColor {
			consoleOpts = append(consoleOpts, diagnostics.WithColor(false))
		}
		return diagnostics.NewConsole(cmd.OutOrStdout(), consoleOpts...), nil
	case "json":
		return diagnostics.NewJSONLines(cmd.OutOrStdout()), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text or json)", format)
	}
}
