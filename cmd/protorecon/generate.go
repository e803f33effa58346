package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	protorecon "github.com/albertocavalcante/go-protorecon"
)

type generateFlags struct {
	out           string
	descriptorSet string
	concurrency   int
}

func (f *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "out", "o", "proto", "output directory")
	cmd.Flags().StringVar(&f.descriptorSet, "descriptor-set", "", "also write a binary FileDescriptorSet to this path")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", runtime.GOMAXPROCS(0), "bundles parsed and files written in parallel")
}

func generateCmd(g *globals) *cobra.Command {
	f := &generateFlags{}

	c := &cobra.Command{
		Use:   "generate BUNDLE...",
		Short: "Write one .proto file per schema module",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := generate(cmd.Context(), g, f, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d files to %s (%d warnings)\n", len(result.Outputs), f.out, len(result.Warnings))
			return nil
		},
	}

	f.register(c)
	return c
}

// generate runs the pipeline and writes everything the flags ask for.
func generate(ctx context.Context, g *globals, f *generateFlags, bundles []string) (*protorecon.Result, error) {
	extra := []protorecon.Option{protorecon.WithConcurrency(f.concurrency)}
	if f.descriptorSet != "" {
		extra = append(extra, protorecon.WithDescriptorSet())
	}
	result, err := protorecon.GenerateFiles(ctx, bundles, g.options(extra...)...)
	if err != nil {
		return nil, err
	}
	if err := result.WriteFiles(ctx, f.out); err != nil {
		return nil, err
	}
	if f.descriptorSet != "" {
		if err := protorecon.WriteDescriptorSet(f.descriptorSet, result.DescriptorSet); err != nil {
			return nil, err
		}
		g.logger.Info("Wrote descriptor set", zap.String("path", f.descriptorSet))
	}
	return result, nil
}
