package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spf13/cobra"

	protorecon "github.com/albertocavalcante/go-protorecon"
)

// globals holds the persistent flags and the logger built from them.
type globals struct {
	dialect    string
	verbose    bool
	noValidate bool

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "protorecon",
		Short:        "Reconstruct protobuf schemas from client module bundles",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger(g.verbose)
			if err != nil {
				return err
			}
			g.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&g.dialect, "dialect", "d", "web", "built-in dialect name or dialect file (.yaml, .star)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output")
	cmd.PersistentFlags().BoolVar(&g.noValidate, "no-validate", false, "report duplicate field numbers and enum values as warnings")

	cmd.AddCommand(
		generateCmd(g),
		checkCmd(g),
		graphCmd(g),
		watchCmd(g),
		dialectCmd(g),
	)
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// options turns the persistent flags into run options.
func (g *globals) options(extra ...protorecon.Option) []protorecon.Option {
	opts := []protorecon.Option{
		protorecon.WithDialectName(g.dialect),
		protorecon.WithLogger(g.logger),
	}
	if g.noValidate {
		opts = append(opts, protorecon.WithoutValidation())
	}
	return append(opts, extra...)
}
