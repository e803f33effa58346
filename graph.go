package protorecon

import (
	"context"
	"fmt"
	"os"

	"github.com/albertocavalcante/go-protorecon/graph"
	"github.com/albertocavalcante/go-protorecon/internal/diag"
	"github.com/albertocavalcante/go-protorecon/loader"
)

// ModuleGraph builds the dependency graph straight from the module
// definitions in bundles, without evaluating any factory. Unlike
// Result.Graph it is available for bundles that do not load, such as
// bundles with dependency cycles. The dialect's renames and ignore list
// apply as they would during a run.
func ModuleGraph(ctx context.Context, bundles []Bundle, opts ...Option) (*graph.Graph, []Warning, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	if len(bundles) == 0 {
		return nil, nil, ErrNoBundles
	}
	r := &run{cfg: cfg, diag: diag.NewCollector(cfg.logger)}
	parsed, err := r.parse(ctx, bundles)
	if err != nil {
		return nil, nil, err
	}

	d := cfg.dialect
	l := loader.New(d.LoaderOptions()...)
	var modules []graph.SimpleModule
	for _, m := range l.Modules() {
		modules = append(modules, graph.SimpleModule{Name: m.Name, Builtin: m.Builtin, Exports: m.Exports.Len()})
	}
	seen := make(map[string]bool)
	for _, p := range parsed {
		for _, decl := range p.Declarations {
			if l.Ignored(decl.Name) {
				continue
			}
			// A later definition of a module only wins under lazy loading.
			if seen[decl.Name] && !d.Lazy {
				continue
			}
			seen[decl.Name] = true
			deps := make([]string, len(decl.Dependencies))
			for i, dep := range decl.Dependencies {
				deps[i] = l.Canonical(dep)
			}
			modules = append(modules, graph.SimpleModule{
				Name:         decl.Name,
				Dependencies: deps,
				Schema:       d.IsSchemaModule(decl.Name),
			})
		}
	}
	return graph.Build(modules), r.diag.Warnings(), nil
}

// ModuleGraphFiles reads bundles from disk and runs ModuleGraph.
func ModuleGraphFiles(ctx context.Context, paths []string, opts ...Option) (*graph.Graph, []Warning, error) {
	bundles := make([]Bundle, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read bundle: %w", err)
		}
		bundles = append(bundles, Bundle{Name: path, Content: data})
	}
	return ModuleGraph(ctx, bundles, opts...)
}
