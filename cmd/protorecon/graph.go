package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	protorecon "github.com/albertocavalcante/go-protorecon"
	"github.com/albertocavalcante/go-protorecon/graph"
	"github.com/albertocavalcante/go-protorecon/loader"
)

// loadGraph returns the graph of loaded modules. Cycle reports and bundles
// that fail to load on a cycle use the graph of module definitions instead.
func loadGraph(cmd *cobra.Command, g *globals, args []string, cycles bool) (*graph.Graph, error) {
	if !cycles {
		result, err := protorecon.GenerateFiles(cmd.Context(), args, append(g.options(), protorecon.WithoutValidation())...)
		if err == nil {
			return result.Graph, nil
		}
		if !errors.Is(err, loader.ErrDependencyCycle) {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; showing module definitions\n", err)
	}
	mg, _, err := protorecon.ModuleGraphFiles(cmd.Context(), args, g.options()...)
	return mg, err
}

func graphCmd(g *globals) *cobra.Command {
	var format string
	var schemaOnly bool
	var why string
	var cycles bool

	c := &cobra.Command{
		Use:   "graph BUNDLE...",
		Short: "Print the module dependency graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mg, err := loadGraph(cmd, g, args, cycles)
			if err != nil {
				return err
			}
			if schemaOnly {
				mg = mg.Filter(func(n *graph.Node) bool { return n.Schema })
			}
			w := cmd.OutOrStdout()

			if why != "" {
				chains, err := mg.WhyIncluded(why)
				if err != nil {
					return err
				}
				for _, chain := range chains {
					fmt.Fprintln(w, chain)
				}
				return nil
			}

			if cycles {
				for _, cycle := range mg.FindCycles() {
					fmt.Fprintln(w, cycle)
				}
				return nil
			}

			switch format {
			case "text":
				fmt.Fprint(w, mg.ToText())
			case "dot":
				fmt.Fprint(w, mg.ToDOT())
			case "json":
				data, err := mg.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
			case "list":
				data, err := json.MarshalIndent(mg.ToModuleList(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
			default:
				return fmt.Errorf("unknown format %q (want text, dot, json or list)", format)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&format, "format", "f", "text", "output format: text, dot, json, list")
	c.Flags().BoolVar(&schemaOnly, "schema-only", false, "only show schema modules")
	c.Flags().StringVar(&why, "why", "", "print every dependency chain that includes this module")
	c.Flags().BoolVar(&cycles, "cycles", false, "print dependency cycles")
	return c
}
