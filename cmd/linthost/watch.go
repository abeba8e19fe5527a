package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/linthost/internal/diagnostics"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [DIR...]",
		Short: "Check PHP files whenever they change",
		Long: `Watch follows the given directories recursively (the current directory
when none is given) and checks every matching file that is written or
created. Diagnostics are printed as they arrive until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}

			console := diagnostics.NewConsole(cmd.OutOrStdout())
			a, err := newApp(cmd, opts, console)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			if metricsAddr != "" {
				a.Config().Metrics.Addr = metricsAddr
			}
			return ignoreCanceled(a.Watch(cmd.Context(), args))
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
