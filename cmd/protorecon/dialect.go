package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-protorecon/dialect"
)

func dialectCmd(_ *globals) *cobra.Command {
	c := &cobra.Command{
		Use:   "dialect",
		Short: "Inspect dialects",
	}

	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List built-in dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range dialect.Names() {
				d, err := dialect.Builtin(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, d.Description)
			}
			return nil
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "show NAME|FILE",
		Short: "Print a dialect as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dialect.Lookup(args[0])
			if err != nil {
				return err
			}
			data, err := dialect.MarshalYAML(d)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return c
}
