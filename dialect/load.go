package dialect

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/go-protorecon/internal/buildutil"
	"github.com/albertocavalcante/go-protorecon/schema"
	"github.com/bazelbuild/buildtools/build"
	"gopkg.in/yaml.v3"
)

// Lookup resolves a dialect by built-in name or file path.
func Lookup(nameOrPath string) (*Dialect, error) {
	if d, err := Builtin(nameOrPath); err == nil {
		return d, nil
	}
	if _, err := os.Stat(nameOrPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q is neither a built-in (%v) nor a file", ErrUnknownDialect, nameOrPath, Names())
		}
		return nil, err
	}
	return LoadFile(nameOrPath)
}

// LoadFile reads a YAML (.yaml, .yml) or Starlark (.star, .bzl, .bazel)
// dialect file.
func LoadFile(filename string) (*Dialect, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".star", ".bzl", ".bazel":
		return ParseStarlark(filename, data)
	default:
		return nil, fmt.Errorf("%w: %s: unrecognized dialect file extension", ErrUnknownDialect, filename)
	}
}

type yamlHead struct {
	Extends string `yaml:"extends"`
}

// ParseYAML decodes a YAML dialect. When the document names a built-in
// under "extends", keys present in the document override the built-in's
// values and maps are merged.
func ParseYAML(data []byte) (*Dialect, error) {
	var head yamlHead
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDialect, err)
	}
	d := &Dialect{}
	if head.Extends != "" {
		base, err := Builtin(head.Extends)
		if err != nil {
			return nil, err
		}
		d = base
	}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDialect, err)
	}
	d.compiled = nil
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MarshalYAML renders d as a YAML document accepted by ParseYAML.
func MarshalYAML(d *Dialect) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StarlarkError is a problem in a Starlark dialect file.
type StarlarkError struct {
	Filename string
	Line     int
	Column   int
	Message  string
}

func (e *StarlarkError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line, e.Column, e.Message)
}

func (e *StarlarkError) Unwrap() error {
	return ErrInvalidDialect
}

// ParseStarlark reads a declarative Starlark dialect file:
//
//	dialect(name = "custom", extends = "web", enum_zero = "remap-or-synthesize")
//	rename_dependency("WAOld.pb", "WANew.pb")
//	ignore_module("WANoise.pb")
//	nesting_strip(module = "WASyncAction", prefix = "SyncActionValue$")
//	legacy_alias(module = "WAProtocol.pb", export = "MessageKeySpec",
//	             target_module = "WACommon", target_name = "MessageKey")
//
// Statements other than the known calls are rejected.
func ParseStarlark(filename string, data []byte) (*Dialect, error) {
	f, err := build.ParseDefault(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDialect, filename, err)
	}
	p := &starlarkParser{filename: filename}

	var calls []*build.CallExpr
	for _, stmt := range f.Stmt {
		switch s := stmt.(type) {
		case *build.CommentBlock:
			continue
		case *build.CallExpr:
			calls = append(calls, s)
		default:
			return nil, p.errorf(stmt, "only function calls are allowed at top level")
		}
	}

	// dialect() may appear anywhere but is applied first, since it picks
	// the base the other statements modify.
	d := &Dialect{}
	seenHeader := false
	for _, call := range calls {
		if buildutil.Callee(call) != "dialect" {
			continue
		}
		if seenHeader {
			return nil, p.errorf(call, "dialect() declared twice")
		}
		seenHeader = true
		if d, err = p.header(call); err != nil {
			return nil, err
		}
	}
	if !seenHeader {
		return nil, &StarlarkError{Filename: filename, Line: 1, Column: 1, Message: "missing dialect() declaration"}
	}

	for _, call := range calls {
		if err := p.apply(d, call); err != nil {
			return nil, err
		}
	}
	d.compiled = nil
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

type starlarkParser struct {
	filename string
}

func (p *starlarkParser) errorf(expr build.Expr, format string, args ...any) error {
	start, _ := expr.Span()
	return &StarlarkError{
		Filename: p.filename,
		Line:     start.Line,
		Column:   start.LineRune,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (p *starlarkParser) header(call *build.CallExpr) (*Dialect, error) {
	d := &Dialect{}
	if base := buildutil.String(call, "extends"); base != "" {
		b, err := Builtin(base)
		if err != nil {
			return nil, p.errorf(call, "%v", err)
		}
		d = b
	}
	if name := buildutil.String(call, "name"); name != "" {
		d.Name = name
	}
	stringAttrs := map[string]*string{
		"description":       &d.Description,
		"constants_module":  &d.ConstantsModule,
		"schema_suffix":     &d.SchemaSuffix,
		"type_suffix":       &d.TypeSuffix,
		"nesting_separator": &d.NestingSeparator,
		"syntax":            &d.Syntax,
		"go_package_prefix": &d.GoPackagePrefix,
	}
	for attr, dst := range stringAttrs {
		if buildutil.Has(call, attr) {
			*dst = buildutil.String(call, attr)
		}
	}
	boolAttrs := map[string]*bool{
		"lazy":              &d.Lazy,
		"presence_labels":   &d.PresenceLabels,
		"repeated_in_oneof": &d.RepeatedInOneof,
		"ignore_non_schema": &d.Ignore.NonSchema,
	}
	for attr, dst := range boolAttrs {
		if buildutil.Has(call, attr) {
			*dst = buildutil.Bool(call, attr)
		}
	}
	if buildutil.Has(call, "enum_zero") {
		policy, err := schema.ParseZeroPolicy(buildutil.String(call, "enum_zero"))
		if err != nil {
			return nil, p.errorf(call, "%v", err)
		}
		d.EnumZero = policy
	}
	return d, nil
}

// pair reads a call's two positional string arguments.
func (p *starlarkParser) pair(call *build.CallExpr) (string, string, error) {
	args := buildutil.Positional(call)
	if len(args) != 2 {
		return "", "", p.errorf(call, "%s() takes exactly two string arguments", buildutil.Callee(call))
	}
	return args[0], args[1], nil
}

func (p *starlarkParser) names(call *build.CallExpr) ([]string, error) {
	args := append(buildutil.Positional(call), buildutil.StringList(call, "names")...)
	if len(args) == 0 {
		return nil, p.errorf(call, "%s() needs at least one string argument", buildutil.Callee(call))
	}
	return args, nil
}

func (p *starlarkParser) required(call *build.CallExpr, attrs ...string) (map[string]string, error) {
	out := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		v := buildutil.String(call, attr)
		if v == "" {
			return nil, p.errorf(call, "%s(): missing %s", buildutil.Callee(call), attr)
		}
		out[attr] = v
	}
	return out, nil
}

func (p *starlarkParser) apply(d *Dialect, call *build.CallExpr) error {
	switch name := buildutil.Callee(call); name {
	case "dialect":
		return nil
	case "rename_dependency":
		from, to, err := p.pair(call)
		if err != nil {
			return err
		}
		if d.DependencyRenames == nil {
			d.DependencyRenames = make(map[string]string)
		}
		d.DependencyRenames[from] = to
	case "import_rename":
		from, to, err := p.pair(call)
		if err != nil {
			return err
		}
		if d.ImportRenames == nil {
			d.ImportRenames = make(map[string]string)
		}
		d.ImportRenames[from] = to
	case "field_rename":
		from, to, err := p.pair(call)
		if err != nil {
			return err
		}
		if d.FieldRenames == nil {
			d.FieldRenames = make(map[string]string)
		}
		d.FieldRenames[from] = to
	case "ignore_module":
		names, err := p.names(call)
		if err != nil {
			return err
		}
		d.Ignore.Modules = append(d.Ignore.Modules, names...)
	case "ignore_prefix":
		names, err := p.names(call)
		if err != nil {
			return err
		}
		d.Ignore.Prefixes = append(d.Ignore.Prefixes, names...)
	case "ignore_pattern":
		names, err := p.names(call)
		if err != nil {
			return err
		}
		d.Ignore.Patterns = append(d.Ignore.Patterns, names...)
	case "keep_module":
		names, err := p.names(call)
		if err != nil {
			return err
		}
		d.Ignore.Keep = append(d.Ignore.Keep, names...)
	case "proto3_module":
		names, err := p.names(call)
		if err != nil {
			return err
		}
		d.Proto3Modules = append(d.Proto3Modules, names...)
	case "nesting_strip":
		attrs, err := p.required(call, "module", "prefix")
		if err != nil {
			return err
		}
		d.NestingStrips = append(d.NestingStrips, NestingStrip{Module: attrs["module"], Prefix: attrs["prefix"]})
	case "field_rewrite", "go_package_rewrite":
		attrs, err := p.required(call, "pattern")
		if err != nil {
			return err
		}
		rw := Rewrite{Pattern: attrs["pattern"], Replace: buildutil.String(call, "replace")}
		if name == "field_rewrite" {
			d.FieldRewrites = append(d.FieldRewrites, rw)
		} else {
			d.GoPackageRewrites = append(d.GoPackageRewrites, rw)
		}
	case "legacy_alias":
		attrs, err := p.required(call, "module", "export", "target_module", "target_name")
		if err != nil {
			return err
		}
		d.LegacyAliases = append(d.LegacyAliases, LegacyAlias{
			Module:       attrs["module"],
			Export:       attrs["export"],
			TargetModule: attrs["target_module"],
			TargetName:   attrs["target_name"],
		})
	case "":
		return p.errorf(call, "method calls are not supported")
	default:
		return p.errorf(call, "unknown directive %s()", name)
	}
	return nil
}
