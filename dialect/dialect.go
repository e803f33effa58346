// Package dialect holds the naming and policy tables that distinguish one
// schema flavour from another.
//
// A Dialect is plain data: which modules to load and ignore, how deprecated
// dependency names map to canonical ones, how export names become nested
// type paths, which syntax and labels to emit, and how module names turn
// into Go package names. The two built-in dialects are Web and Armadillo;
// others can be loaded from YAML or Starlark files.
package dialect

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/schema"
)

const (
	Proto2 = "proto2"
	Proto3 = "proto3"
)

// Dialect describes one schema flavour.
type Dialect struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Lazy defers module evaluation until every bundle is registered.
	Lazy bool `yaml:"lazy"`

	// ConstantsModule exports the TYPES, TYPE_MASK and FLAGS tables.
	ConstantsModule string `yaml:"constants_module"`

	// SchemaSuffix marks modules that contain schema definitions.
	SchemaSuffix string `yaml:"schema_suffix"`

	// TypeSuffix is stripped from export names before they are split.
	TypeSuffix string `yaml:"type_suffix"`

	// NestingSeparator separates path segments in export names.
	NestingSeparator string `yaml:"nesting_separator"`

	DependencyRenames map[string]string `yaml:"dependency_renames,omitempty"`
	Ignore            IgnoreRules       `yaml:"ignore"`
	NestingStrips     []NestingStrip    `yaml:"nesting_strips,omitempty"`
	ImportRenames     map[string]string `yaml:"import_renames,omitempty"`
	LegacyAliases     []LegacyAlias     `yaml:"legacy_aliases,omitempty"`

	Syntax        string   `yaml:"syntax"`
	Proto3Modules []string `yaml:"proto3_modules,omitempty"`

	// PresenceLabels emits optional/required on proto2 fields outside oneofs.
	PresenceLabels bool `yaml:"presence_labels"`

	// RepeatedInOneof keeps the repeated label on oneof members.
	RepeatedInOneof bool `yaml:"repeated_in_oneof"`

	GoPackagePrefix   string    `yaml:"go_package_prefix"`
	GoPackageRewrites []Rewrite `yaml:"go_package_rewrites,omitempty"`

	FieldRenames  map[string]string `yaml:"field_renames,omitempty"`
	FieldRewrites []Rewrite         `yaml:"field_rewrites,omitempty"`

	EnumZero schema.ZeroPolicy `yaml:"enum_zero"`

	compiled *compiled
}

// IgnoreRules decides which module registrations are dropped. Keep wins
// over every other rule.
type IgnoreRules struct {
	Keep []string `yaml:"keep,omitempty"`

	// NonSchema ignores modules without the schema suffix.
	NonSchema bool `yaml:"non_schema"`

	Modules  []string `yaml:"modules,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty"`

	// Patterns are path.Match globs.
	Patterns []string `yaml:"patterns,omitempty"`
}

// NestingStrip removes Prefix from export names of one module so that the
// types it names are not nested under a container message.
type NestingStrip struct {
	Module string `yaml:"module"`
	Prefix string `yaml:"prefix"`
}

// LegacyAlias maps the export of a superseded module onto a type owned by
// another module. The legacy module itself produces no file.
type LegacyAlias struct {
	Module       string `yaml:"module"`
	Export       string `yaml:"export"`
	TargetModule string `yaml:"target_module"`
	TargetName   string `yaml:"target_name"`
}

// Rewrite replaces the first match of Pattern with Replace, which may
// refer to submatches as ${1}.
type Rewrite struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

type compiled struct {
	goPackage []compiledRewrite
	field     []compiledRewrite
}

type compiledRewrite struct {
	re      *regexp.Regexp
	replace string
}

func compileRewrites(kind string, rewrites []Rewrite) ([]compiledRewrite, error) {
	out := make([]compiledRewrite, 0, len(rewrites))
	for _, rw := range rewrites {
		re, err := regexp.Compile(rw.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%s rewrite %q: %w", kind, rw.Pattern, err)
		}
		out = append(out, compiledRewrite{re: re, replace: rw.Replace})
	}
	return out, nil
}

// replaceFirst substitutes only the leftmost match.
func (r compiledRewrite) replaceFirst(s string) string {
	m := r.re.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	var dst []byte
	dst = r.re.ExpandString(dst, r.replace, s, m)
	return s[:m[0]] + string(dst) + s[m[1]:]
}

// Validate checks the dialect for consistency and prepares its rewrite
// rules. Loaders call it; hand-built dialects should too.
func (d *Dialect) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDialect)
	}
	if d.ConstantsModule == "" {
		return fmt.Errorf("%w: %s: missing constants module", ErrInvalidDialect, d.Name)
	}
	if d.SchemaSuffix == "" {
		return fmt.Errorf("%w: %s: missing schema suffix", ErrInvalidDialect, d.Name)
	}
	if d.NestingSeparator == "" {
		return fmt.Errorf("%w: %s: missing nesting separator", ErrInvalidDialect, d.Name)
	}
	switch d.Syntax {
	case Proto2, Proto3:
	default:
		return fmt.Errorf("%w: %s: syntax must be %s or %s, got %q", ErrInvalidDialect, d.Name, Proto2, Proto3, d.Syntax)
	}
	if _, err := schema.ParseZeroPolicy(string(d.EnumZero)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDialect, d.Name, err)
	}
	for _, p := range d.Ignore.Patterns {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("%w: %s: ignore pattern %q: %v", ErrInvalidDialect, d.Name, p, err)
		}
	}
	for _, alias := range d.LegacyAliases {
		if alias.Module == "" || alias.Export == "" || alias.TargetModule == "" || alias.TargetName == "" {
			return fmt.Errorf("%w: %s: incomplete legacy alias for %q", ErrInvalidDialect, d.Name, alias.Module)
		}
	}

	c := &compiled{}
	var err error
	if c.goPackage, err = compileRewrites("go package", d.GoPackageRewrites); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDialect, d.Name, err)
	}
	if c.field, err = compileRewrites("field", d.FieldRewrites); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDialect, d.Name, err)
	}
	d.compiled = c
	return nil
}

func (d *Dialect) rules() *compiled {
	if d.compiled == nil {
		if err := d.Validate(); err != nil {
			return &compiled{}
		}
	}
	return d.compiled
}

// Clone returns a deep copy.
func (d *Dialect) Clone() *Dialect {
	out := *d
	out.DependencyRenames = cloneMap(d.DependencyRenames)
	out.ImportRenames = cloneMap(d.ImportRenames)
	out.FieldRenames = cloneMap(d.FieldRenames)
	out.Ignore = IgnoreRules{
		Keep:      cloneSlice(d.Ignore.Keep),
		NonSchema: d.Ignore.NonSchema,
		Modules:   cloneSlice(d.Ignore.Modules),
		Prefixes:  cloneSlice(d.Ignore.Prefixes),
		Patterns:  cloneSlice(d.Ignore.Patterns),
	}
	out.NestingStrips = cloneSlice(d.NestingStrips)
	out.LegacyAliases = cloneSlice(d.LegacyAliases)
	out.Proto3Modules = cloneSlice(d.Proto3Modules)
	out.GoPackageRewrites = cloneSlice(d.GoPackageRewrites)
	out.FieldRewrites = cloneSlice(d.FieldRewrites)
	out.compiled = nil
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Ignored reports whether registrations of module name are dropped.
func (d *Dialect) Ignored(name string) bool {
	for _, keep := range d.Ignore.Keep {
		if name == keep {
			return false
		}
	}
	if d.Ignore.NonSchema && !d.IsSchemaModule(name) {
		return true
	}
	for _, m := range d.Ignore.Modules {
		if name == m {
			return true
		}
	}
	for _, prefix := range d.Ignore.Prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, pattern := range d.Ignore.Patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// LoaderOptions returns the loader settings this dialect implies.
func (d *Dialect) LoaderOptions() []loader.Option {
	return []loader.Option{
		loader.WithLazy(d.Lazy),
		loader.WithRenames(d.DependencyRenames),
		loader.WithIgnore(d.Ignored),
	}
}

// IsSchemaModule reports whether name carries the schema suffix.
func (d *Dialect) IsSchemaModule(name string) bool {
	return strings.HasSuffix(name, d.SchemaSuffix)
}

// PackageName turns a module name into its schema package name by removing
// the first occurrence of the schema suffix.
func (d *Dialect) PackageName(module string) string {
	return strings.Replace(module, d.SchemaSuffix, "", 1)
}

// Imports derives a file's import list from its module dependencies:
// non-schema dependencies are dropped, the rest become package names with
// import renames applied. Declared order is kept.
func (d *Dialect) Imports(deps []string) []string {
	var out []string
	for _, dep := range deps {
		if !d.IsSchemaModule(dep) {
			continue
		}
		name := d.PackageName(dep)
		if to, ok := d.ImportRenames[name]; ok {
			name = to
		}
		out = append(out, name)
	}
	return out
}

// TypePath splits an export name into nesting path segments. The last
// segment is the type's own name.
func (d *Dialect) TypePath(pkg, export string) []string {
	name := strings.TrimSuffix(export, d.TypeSuffix)
	for _, strip := range d.NestingStrips {
		if strip.Module == pkg && strings.HasPrefix(name, strip.Prefix) {
			name = strings.TrimPrefix(name, strip.Prefix)
			break
		}
	}
	return strings.Split(name, d.NestingSeparator)
}

// LegacyAlias returns the alias rule for module, if any.
func (d *Dialect) LegacyAlias(module string) (LegacyAlias, bool) {
	for _, a := range d.LegacyAliases {
		if a.Module == module {
			return a, true
		}
	}
	return LegacyAlias{}, false
}

// SyntaxFor returns the syntax emitted for a package.
func (d *Dialect) SyntaxFor(pkg string) string {
	for _, m := range d.Proto3Modules {
		if m == pkg {
			return Proto3
		}
	}
	return d.Syntax
}

// GoPackage returns the Go package name for a schema package.
func (d *Dialect) GoPackage(pkg string) string {
	name := pkg
	for _, rw := range d.rules().goPackage {
		name = rw.replaceFirst(name)
	}
	return name
}

// GoImportPath returns the go_package option value for a schema package.
func (d *Dialect) GoImportPath(pkg string) string {
	return d.GoPackagePrefix + d.GoPackage(pkg)
}

// OutputPath is the slash-separated path of the file generated for pkg.
func (d *Dialect) OutputPath(pkg string) string {
	return d.GoPackage(pkg) + "/" + pkg + ".proto"
}

// FieldName normalizes a field name: an exact match in FieldRenames wins,
// otherwise every FieldRewrite is applied to its first match in order.
func (d *Dialect) FieldName(name string) string {
	if to, ok := d.FieldRenames[name]; ok {
		return to
	}
	for _, rw := range d.rules().field {
		name = rw.replaceFirst(name)
	}
	return name
}

// ZeroPolicy returns the enum zero policy, defaulting to remap.
func (d *Dialect) ZeroPolicy() schema.ZeroPolicy {
	p, err := schema.ParseZeroPolicy(string(d.EnumZero))
	if err != nil {
		return schema.ZeroRemap
	}
	return p
}

// EnumValues returns the entries rendered for enum n under this dialect's
// zero policy. Enums in proto3 packages always start with a zero entry.
func (d *Dialect) EnumValues(n *schema.Node) []schema.EnumValue {
	if d.SyntaxFor(n.Module) == Proto3 {
		return n.Proto3Values(d.ZeroPolicy())
	}
	return n.EffectiveValues(d.ZeroPolicy())
}
