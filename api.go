// Package protorecon reconstructs protobuf schemas from the module bundles
// shipped by a messaging web client.
//
// A run parses the bundles, registers every module definition with a
// loader, extracts messages and enums from the schema modules and renders
// one .proto file per module.
//
// # Quick Start
//
//	result, err := protorecon.GenerateFiles(ctx, []string{"bootloader.js", "main.js"})
//	if err != nil {
//	    return err
//	}
//	err = result.WriteFiles(ctx, "proto")
//
// # Dialects
//
// Naming, ignore lists and syntax choices differ between client builds.
// They live in a dialect.Dialect:
//
//	protorecon.Generate(ctx, bundles, protorecon.WithDialect(dialect.Armadillo()))
//	protorecon.GenerateFiles(ctx, paths, protorecon.WithDialectName("my-dialect.yaml"))
//
// # Warnings
//
// Problems that do not stop the run (unknown type tags, unresolved
// references, duplicate messages) are logged and returned in
// Result.Warnings.
package protorecon

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/albertocavalcante/go-protorecon/descset"
	"github.com/albertocavalcante/go-protorecon/dialect"
	"github.com/albertocavalcante/go-protorecon/extract"
	"github.com/albertocavalcante/go-protorecon/graph"
	"github.com/albertocavalcante/go-protorecon/internal/diag"
	"github.com/albertocavalcante/go-protorecon/jsast"
	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/protogen"
	"github.com/albertocavalcante/go-protorecon/schema"
)

// Warning is a recoverable problem found during a run.
type Warning = diag.Warning

// Bundle is the source of one bundle file.
type Bundle struct {
	Name    string
	Content []byte
}

// Result is the outcome of a run.
type Result struct {
	Dialect *dialect.Dialect

	// Files are the extracted schemas in module resolution order.
	Files []*schema.File

	// Outputs are the rendered files, one per entry in Files.
	Outputs []*protogen.Output

	// DescriptorSet is set when WithDescriptorSet was given.
	DescriptorSet *descriptorpb.FileDescriptorSet

	// Graph is the dependency graph of every loaded module.
	Graph *graph.Graph

	Warnings []Warning

	concurrency int
	logger      *zap.Logger
}

// Generate runs the whole pipeline over bundles, which are registered in
// the order given.
func Generate(ctx context.Context, bundles []Bundle, opts ...Option) (*Result, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, ErrNoBundles
	}
	r := &run{cfg: cfg, diag: diag.NewCollector(cfg.logger)}
	return r.generate(ctx, bundles)
}

// GenerateFiles reads bundles from disk and runs Generate.
func GenerateFiles(ctx context.Context, paths []string, opts ...Option) (*Result, error) {
	bundles := make([]Bundle, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		bundles = append(bundles, Bundle{Name: path, Content: data})
	}
	return Generate(ctx, bundles, opts...)
}

type run struct {
	cfg  *config
	diag *diag.Collector
}

func (r *run) generate(ctx context.Context, bundles []Bundle) (*Result, error) {
	d := r.cfg.dialect
	logger := r.cfg.logger

	parsed, err := r.parse(ctx, bundles)
	if err != nil {
		return nil, err
	}

	l := loader.New(append(d.LoaderOptions(), loader.WithLogger(logger))...)
	for _, p := range parsed {
		if err := jsast.Register(l, p.Declarations); err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.LoadAll(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	modules := l.Modules()
	logger.Debug("Loaded modules", zap.Int("count", len(modules)))

	files, err := extract.New(d, extract.WithCollector(r.diag)).Extract(modules)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if err := r.validate(files); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs := protogen.New(d, protogen.WithCollector(r.diag)).Generate(files)

	result := &Result{
		Dialect:     d,
		Files:       files,
		Outputs:     outputs,
		Graph:       graph.FromModules(modules, d.IsSchemaModule),
		concurrency: r.cfg.concurrency,
		logger:      logger,
	}
	if r.cfg.descriptorSet {
		result.DescriptorSet = descset.Build(d, files, outputs)
		if _, err := descset.Link(result.DescriptorSet); err != nil {
			r.diag.Warn(diag.StageSerialize, "", "Descriptor set does not link cleanly", zap.Error(err))
		}
	}
	result.Warnings = r.diag.Warnings()
	logger.Info("Generated schema files",
		zap.Int("files", len(outputs)), zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// parse parses bundles concurrently, keeping their order in the result.
func (r *run) parse(ctx context.Context, bundles []Bundle) ([]*jsast.ParseResult, error) {
	parsed := make([]*jsast.ParseResult, len(bundles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.concurrency)
	for i, b := range bundles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := jsast.ParseContent(b.Name, b.Content)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			parsed[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range parsed {
		for _, w := range p.Warnings {
			r.diag.Warn(diag.StageParse, "", w.Message, zap.Stringer("position", w.Pos))
		}
		for _, e := range p.Errors {
			r.diag.Warn(diag.StageParse, "", "Skipped module definition: "+e.Message, zap.Stringer("position", e.Pos))
		}
		r.cfg.logger.Debug("Parsed bundle", zap.Int("modules", len(p.Declarations)))
	}
	return parsed, nil
}

// validate checks every file for duplicate numbers. Problems are fatal
// unless validation was turned off.
func (r *run) validate(files []*schema.File) error {
	policy := r.cfg.dialect.ZeroPolicy()
	var errs []error
	for _, f := range files {
		err := schema.Validate(f, policy)
		if err == nil {
			continue
		}
		var verr *schema.ValidationError
		if !r.cfg.validate && errors.As(err, &verr) {
			for _, p := range verr.Problems {
				r.diag.Warn(diag.StageValidate, f.Name, p.String())
			}
			continue
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("validate: %w", errors.Join(errs...))
	}
	return nil
}

// Output returns the rendered file for a package name.
func (r *Result) Output(pkg string) (*protogen.Output, bool) {
	for _, o := range r.Outputs {
		if o.Package == pkg {
			return o, true
		}
	}
	return nil, false
}
