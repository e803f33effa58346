package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/albertocavalcante/go-protorecon/internal/watch"
)

func watchCmd(g *globals) *cobra.Command {
	f := &generateFlags{}
	var debounce = watch.DefaultDebounce

	c := &cobra.Command{
		Use:   "watch BUNDLE...",
		Short: "Regenerate whenever a bundle changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := generate(ctx, g, f, args); err != nil {
				g.logger.Error("Initial generation failed", zap.Error(err))
			}

			w, err := watch.New(args, watch.WithDebounce(debounce), watch.WithLogger(g.logger))
			if err != nil {
				return err
			}
			return w.Run(ctx, func(ctx context.Context, _ []string) error {
				result, err := generate(ctx, g, f, args)
				if err != nil {
					return err
				}
				g.logger.Info("Regenerated", zap.Int("files", len(result.Outputs)), zap.Int("warnings", len(result.Warnings)))
				return nil
			})
		},
	}

	f.register(c)
	c.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before regenerating")
	return c
}
