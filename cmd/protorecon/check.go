package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	protorecon "github.com/albertocavalcante/go-protorecon"
)

func checkCmd(g *globals) *cobra.Command {
	var out string
	var quiet bool

	c := &cobra.Command{
		Use:   "check BUNDLE...",
		Short: "Fail if the .proto files on disk differ from a fresh generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := protorecon.GenerateFiles(cmd.Context(), args, g.options()...)
			if err != nil {
				return err
			}
			report, err := protorecon.Check(out, result.Outputs)
			if report != nil && !quiet {
				for _, f := range report.Files {
					if f.Diff != "" {
						fmt.Fprint(cmd.OutOrStdout(), f.Diff)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", f.Path, f.Kind)
					}
				}
			}
			if errors.Is(err, protorecon.ErrDrift) {
				cmd.SilenceErrors = quiet
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files up to date\n", len(result.Outputs))
			return nil
		},
	}

	c.Flags().StringVarP(&out, "out", "o", "proto", "directory holding the generated files")
	c.Flags().BoolVarP(&quiet, "quiet", "q", false, "only set the exit status")
	return c
}
