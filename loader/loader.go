// Package loader implements the module registry that schema modules are
// declared into.
//
// A module is registered with a name, a list of dependency names and a
// factory. Resolving a module evaluates its dependencies first, then invokes
// the factory with an Env bound to this loader, and caches the resulting
// exports. Registration can be eager (the factory runs immediately) or lazy
// (factories run on first reference or on LoadAll).
//
// Names pass through a rename table before every lookup so that deprecated
// module names keep resolving to their canonical replacement.
package loader

import (
	"errors"

	"github.com/albertocavalcante/go-protorecon/value"
	"go.uber.org/zap"
)

// EnumModule is the name of the built-in module whose default export turns
// an object literal into an enum.
const EnumModule = "$InternalEnum"

// Factory evaluates a module body, populating env.Exports.
type Factory func(env *Env) error

// Module is a resolved module.
type Module struct {
	// Name is the canonical module name.
	Name string

	// Dependencies lists dependency names after renaming, in declared order.
	Dependencies []string

	// Exports holds the exported symbols.
	Exports *value.Object

	// Builtin is true for modules provided by the loader itself.
	Builtin bool
}

type registration struct {
	name    string
	deps    []string
	factory Factory
}

// Loader is a module registry. It is not safe for concurrent use.
type Loader struct {
	renames map[string]string
	ignore  func(string) bool
	lazy    bool
	logger  *zap.Logger

	resolved map[string]*Module
	order    []string

	pending      map[string]*registration
	pendingOrder []string

	loading []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithRenames sets the table that maps deprecated module names to their
// canonical replacement.
func WithRenames(renames map[string]string) Option {
	return func(l *Loader) {
		l.renames = renames
	}
}

// WithIgnore sets the predicate deciding which registrations are dropped.
func WithIgnore(ignore func(name string) bool) Option {
	return func(l *Loader) {
		l.ignore = ignore
	}
}

// WithLazy defers factory evaluation until a module is resolved.
func WithLazy(lazy bool) Option {
	return func(l *Loader) {
		l.lazy = lazy
	}
}

// WithLogger sets the logger used for load progress.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loader with the built-in enum module preinstalled.
func New(opts ...Option) *Loader {
	l := &Loader{
		logger:   zap.NewNop(),
		resolved: make(map[string]*Module),
		pending:  make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.install(enumModule())
	return l
}

func (l *Loader) install(m *Module) {
	l.resolved[m.Name] = m
	l.order = append(l.order, m.Name)
}

// Canonical applies the rename table to name.
func (l *Loader) Canonical(name string) string {
	if to, ok := l.renames[name]; ok {
		return to
	}
	return name
}

// Ignored reports whether registrations under name are dropped.
func (l *Loader) Ignored(name string) bool {
	return l.ignore != nil && l.ignore(name)
}

// Register records a module. Ignored names and names that are already
// resolved are no-ops. A pending lazy registration is replaced in place.
// In eager mode the factory runs immediately, so dependency errors surface
// here.
func (l *Loader) Register(name string, deps []string, factory Factory) error {
	if l.Ignored(name) {
		l.logger.Debug("Ignoring module", zap.String("module", name))
		return nil
	}
	if _, ok := l.resolved[name]; ok {
		l.logger.Debug("Ignoring duplicate module", zap.String("module", name))
		return nil
	}
	renamed := make([]string, len(deps))
	for i, dep := range deps {
		renamed[i] = l.Canonical(dep)
	}
	reg := &registration{name: name, deps: renamed, factory: factory}
	if !l.lazy {
		return l.evaluate(reg)
	}
	if _, ok := l.pending[name]; !ok {
		l.pendingOrder = append(l.pendingOrder, name)
	}
	l.pending[name] = reg
	return nil
}

// Resolve returns the module registered under name (after renaming),
// evaluating it and its dependencies first if it is still pending.
func (l *Loader) Resolve(name string) (*Module, error) {
	return l.resolve(l.Canonical(name), "")
}

func (l *Loader) resolve(name, requiredBy string) (*Module, error) {
	if m, ok := l.resolved[name]; ok {
		return m, nil
	}
	reg, ok := l.pending[name]
	if !ok {
		return nil, &ModuleNotFoundError{Name: name, RequiredBy: requiredBy}
	}
	for _, inProgress := range l.loading {
		if inProgress == name {
			return nil, &CycleError{Path: append(cycleFrom(l.loading, name), name)}
		}
	}
	l.loading = append(l.loading, name)
	defer func() { l.loading = l.loading[:len(l.loading)-1] }()

	for _, dep := range reg.deps {
		if _, done := l.resolved[dep]; done {
			continue
		}
		if _, known := l.pending[dep]; !known && l.Ignored(dep) {
			l.logger.Debug("Skipping ignored dependency", zap.String("module", name), zap.String("dependency", dep))
			continue
		}
		if _, err := l.resolve(dep, name); err != nil {
			return nil, err
		}
	}
	if err := l.evaluate(reg); err != nil {
		return nil, err
	}
	return l.resolved[name], nil
}

func cycleFrom(stack []string, name string) []string {
	for i, n := range stack {
		if n == name {
			out := make([]string, len(stack)-i)
			copy(out, stack[i:])
			return out
		}
	}
	return nil
}

func (l *Loader) evaluate(reg *registration) error {
	l.logger.Debug("Loading", zap.String("module", reg.name), zap.Strings("dependencies", reg.deps))
	env := &Env{
		Module:       reg.name,
		Dependencies: reg.deps,
		Exports:      value.NewObject(),
		loader:       l,
	}
	if reg.factory != nil {
		if err := reg.factory(env); err != nil {
			var notFound *ModuleNotFoundError
			var cycle *CycleError
			if errors.As(err, &notFound) || errors.As(err, &cycle) {
				return err
			}
			return &FactoryError{Module: reg.name, Err: err}
		}
	}
	delete(l.pending, reg.name)
	l.install(&Module{Name: reg.name, Dependencies: reg.deps, Exports: env.Exports})
	return nil
}

// LoadAll resolves every pending module in registration order.
func (l *Loader) LoadAll() error {
	for _, name := range l.pendingOrder {
		if _, ok := l.pending[name]; !ok {
			continue
		}
		if _, err := l.resolve(name, ""); err != nil {
			return err
		}
	}
	l.pendingOrder = nil
	return nil
}

// Modules returns resolved modules in resolution order, built-ins included.
func (l *Loader) Modules() []*Module {
	out := make([]*Module, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.resolved[name])
	}
	return out
}

// Module returns a resolved module without triggering evaluation.
func (l *Loader) Module(name string) (*Module, bool) {
	m, ok := l.resolved[l.Canonical(name)]
	return m, ok
}

// Pending returns the names of registered modules not yet evaluated.
func (l *Loader) Pending() []string {
	var out []string
	for _, name := range l.pendingOrder {
		if _, ok := l.pending[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Env is what a factory sees while it runs.
type Env struct {
	// Module is the name of the module being evaluated.
	Module string

	// Dependencies is the renamed dependency list.
	Dependencies []string

	// Exports receives the module's exported symbols.
	Exports *value.Object

	loader *Loader
}

// Require returns the exports of another module, resolving it on demand.
func (e *Env) Require(name string) (*value.Object, error) {
	m, err := e.loader.resolve(e.loader.Canonical(name), e.Module)
	if err != nil {
		return nil, err
	}
	return m.Exports, nil
}

// RequireDefault returns the "exports" property of another module's exports.
func (e *Env) RequireDefault(name string) (value.Value, error) {
	exports, err := e.Require(name)
	if err != nil {
		return nil, err
	}
	return value.Member(exports, "exports"), nil
}

func enumModule() *Module {
	exports := value.NewObject()
	exports.Set("exports", value.Func(func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Undefined{}, nil
		}
		if obj, ok := args[0].(*value.Object); ok {
			obj.MarkEnum()
			return obj, nil
		}
		return args[0], nil
	}))
	return &Module{Name: EnumModule, Exports: exports, Builtin: true}
}
