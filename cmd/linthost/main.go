// Package main is the entry point for linthost, which runs PHP lint tools
// against files and reports their diagnostics.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/linthost/internal/app"
	"github.com/dshills/linthost/internal/config"
	"github.com/dshills/linthost/internal/lint"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errFoundErrors makes the process exit with status 1 without printing.
var errFoundErrors = errors.New("error diagnostics reported")

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFoundErrors) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "linthost",
		Short: "Run phpmd, phpcs and php -l against PHP files",
		Long: `linthost runs a fixed sequence of external PHP checkers against each
requested file, one process at a time, and reports their diagnostics
as per-line errors and warnings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "path to configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCheckCmd(opts),
		newWatchCmd(opts),
		newViewCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newApp(cmd *cobra.Command, opts *rootOptions, sinks ...lint.Sink) (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: opts.configPath,
		LogLevel:   opts.logLevel,
		LogOutput:  cmd.ErrOrStderr(),
		Sinks:      sinks,
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
