package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/linthost/internal/diagnostics"
)

func newViewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view FILE",
		Short: "Check a file and browse it with diagnostics in the gutter",
		Long: `View shows the file in the terminal with E and W signs next to annotated
lines. Move with j/k or the arrow keys, jump to the next diagnostic with
n and quit with q. A file without one of the lint.extensions is shown
without being checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("creating screen: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("initializing screen: %w", err)
			}
			defer screen.Fini()

			view := diagnostics.NewScreen(screen, path, content)
			a, err := newApp(cmd, opts, view)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			return runView(cmd.Context(), view, func(ctx context.Context) error {
				_, err := a.Check(ctx, []string{path})
				return err
			})
		},
	}
}

// runView runs the screen and the check together. Closing the screen stops
// the check; a finished check leaves the screen open.
func runView(ctx context.Context, view *diagnostics.Screen, check func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ignoreCanceled(view.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(check(gctx))
	})
	return g.Wait()
}
