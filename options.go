package protorecon

import (
	"errors"
	"runtime"

	"go.uber.org/zap"

	"github.com/albertocavalcante/go-protorecon/dialect"
)

// Option configures a run.
type Option func(*config) error

type config struct {
	dialect       *dialect.Dialect
	validate      bool
	descriptorSet bool
	concurrency   int

	// logger receives progress at debug level and every warning.
	// If nil, logging is disabled.
	logger *zap.Logger
}

func defaultConfig() *config {
	return &config{
		dialect:     dialect.Web(),
		validate:    true,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      zap.NewNop(),
	}
}

func newConfig(opts []Option) (*config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithDialect selects the dialect. The default is the web dialect.
func WithDialect(d *dialect.Dialect) Option {
	return func(c *config) error {
		if d == nil {
			return errors.New("dialect must not be nil")
		}
		c.dialect = d
		return nil
	}
}

// WithDialectName selects a built-in dialect by name or loads a dialect
// file, as dialect.Lookup does.
func WithDialectName(nameOrPath string) Option {
	return func(c *config) error {
		d, err := dialect.Lookup(nameOrPath)
		if err != nil {
			return err
		}
		c.dialect = d
		return nil
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
//
// Example:
//
//	logger, _ := zap.NewDevelopment()
//	result, err := protorecon.Generate(ctx, bundles, protorecon.WithLogger(logger))
func WithLogger(l *zap.Logger) Option {
	return func(c *config) error {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
		return nil
	}
}

// WithoutValidation downgrades duplicate field numbers and enum values from
// a fatal error to warnings.
func WithoutValidation() Option {
	return func(c *config) error {
		c.validate = false
		return nil
	}
}

// WithDescriptorSet additionally builds a linked FileDescriptorSet.
func WithDescriptorSet() Option {
	return func(c *config) error {
		c.descriptorSet = true
		return nil
	}
}

// WithConcurrency bounds how many bundles are parsed and files written at
// once. The default is GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		c.concurrency = n
		return nil
	}
}

// validateConfig checks the configuration for logical consistency.
func (c *config) validateConfig() error {
	if c.concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	return c.dialect.Validate()
}
