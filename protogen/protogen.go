// Package protogen renders schema files as .proto source text.
//
// A Generator is used for one run: it remembers every top-level message
// name it has emitted so that later files comment out their duplicates
// instead of redefining them.
package protogen

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-protorecon/dialect"
	"github.com/albertocavalcante/go-protorecon/internal/diag"
	"github.com/albertocavalcante/go-protorecon/schema"
	"go.uber.org/zap"
)

const (
	// DuplicateMarker precedes a commented-out duplicate message.
	DuplicateMarker = "// Duplicate type omitted"

	unresolvedComment = " // unresolved type reference"
	indentUnit        = "\t"
)

// Output is one rendered file.
type Output struct {
	// Path is slash-separated and relative to the output root.
	Path    string
	Package string
	Source  string
	Content []byte

	// Omitted lists top-level messages rendered as duplicates.
	Omitted []*schema.Node
}

// Generator renders files in order. It is not safe for concurrent use.
type Generator struct {
	dialect *dialect.Dialect
	diag    *diag.Collector
	seen    map[string]string
}

// Option configures a Generator.
type Option func(*Generator)

// WithCollector sets where warnings are recorded.
func WithCollector(c *diag.Collector) Option {
	return func(g *Generator) {
		g.diag = c
	}
}

// New returns a generator for dialect d.
func New(d *dialect.Dialect, opts ...Option) *Generator {
	g := &Generator{dialect: d, seen: make(map[string]string)}
	for _, opt := range opts {
		opt(g)
	}
	if g.diag == nil {
		g.diag = diag.NewCollector(nil)
	}
	return g
}

// Generate renders every file in order.
func (g *Generator) Generate(files []*schema.File) []*Output {
	out := make([]*Output, 0, len(files))
	for _, f := range files {
		out = append(out, g.File(f))
	}
	return out
}

// File renders one file. Top-level messages already emitted by an earlier
// call are commented out.
func (g *Generator) File(f *schema.File) *Output {
	r := &renderer{g: g, file: f, proto3: g.dialect.SyntaxFor(f.Name) == dialect.Proto3}
	lines := r.header()
	lines = append(lines, r.children(&f.Scope, true)...)
	lines = append(lines, "")
	return &Output{
		Path:    g.dialect.OutputPath(f.Name),
		Package: f.Name,
		Source:  f.Source,
		Content: []byte(strings.Join(lines, "\n")),
		Omitted: r.omitted,
	}
}

type renderer struct {
	g       *Generator
	file    *schema.File
	proto3  bool
	omitted []*schema.Node
}

func (r *renderer) header() []string {
	d := r.g.dialect
	lines := []string{
		fmt.Sprintf("syntax = %q;", d.SyntaxFor(r.file.Name)),
		fmt.Sprintf("package %s;", r.file.Name),
		fmt.Sprintf("option go_package = %q;", d.GoImportPath(r.file.Name)),
		"",
	}
	if len(r.file.Dependencies) > 0 {
		for _, dep := range r.file.Dependencies {
			lines = append(lines, fmt.Sprintf("import %q;", d.OutputPath(dep)))
		}
		lines = append(lines, "")
	}
	return lines
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if line != "" {
			out[i] = indentUnit + line
		}
	}
	return out
}

// joinSections concatenates non-empty sections with one blank line between
// them.
func joinSections(sections ...[]string) []string {
	var out []string
	for _, s := range sections {
		if len(s) == 0 {
			continue
		}
		if out != nil {
			out = append(out, "")
		}
		out = append(out, s...)
	}
	return out
}

func (r *renderer) children(scope *schema.Scope, topLevel bool) []string {
	var sections [][]string
	for _, e := range scope.Enums {
		sections = append(sections, r.enum(e))
	}
	for _, m := range scope.Messages {
		block := r.message(m)
		if topLevel {
			block = r.dedupe(m, block)
		}
		sections = append(sections, block)
	}
	return joinSections(sections...)
}

func (r *renderer) dedupe(m *schema.Node, block []string) []string {
	if first, ok := r.g.seen[m.Name]; ok {
		r.g.diag.Warn(diag.StageSerialize, r.file.Name, "Duplicate type omitted",
			zap.String("message", m.Name), zap.String("first", first))
		r.omitted = append(r.omitted, m)
		out := make([]string, 0, len(block)+1)
		out = append(out, DuplicateMarker)
		for _, line := range block {
			out = append(out, "//"+line)
		}
		return out
	}
	r.g.seen[m.Name] = r.file.Name
	return block
}

func (r *renderer) enum(n *schema.Node) []string {
	values := r.g.dialect.EnumValues(n)
	body := make([]string, len(values))
	for i, v := range values {
		body[i] = fmt.Sprintf("%s = %d;", v.Name, v.Number)
	}
	lines := []string{"enum " + n.Name + " {"}
	lines = append(lines, indent(body)...)
	return append(lines, "}")
}

func (r *renderer) message(n *schema.Node) []string {
	sections := [][]string{r.children(&n.Scope, false)}
	for _, o := range n.Oneofs {
		body := make([]string, len(o.Fields))
		for i, f := range o.Fields {
			body[i] = r.field(n, f, true)
		}
		block := []string{"oneof " + o.Name + " {"}
		block = append(block, indent(body)...)
		sections = append(sections, append(block, "}"))
	}
	fields := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = r.field(n, f, false)
	}
	sections = append(sections, fields)

	lines := []string{"message " + n.Name + " {"}
	lines = append(lines, indent(joinSections(sections...))...)
	return append(lines, "}")
}

// Labels returns the modifiers printed before a field's type.
func Labels(d *dialect.Dialect, proto3 bool, f *schema.Field, inOneof bool) []string {
	if f.IsMap() {
		return nil
	}
	if f.Repeated {
		if inOneof && !d.RepeatedInOneof {
			return nil
		}
		return []string{"repeated"}
	}
	if inOneof || proto3 || !d.PresenceLabels {
		return nil
	}
	if f.Required {
		return []string{"required"}
	}
	return []string{"optional"}
}

func (r *renderer) field(owner *schema.Node, f *schema.Field, inOneof bool) string {
	labels := Labels(r.g.dialect, r.proto3, f, inOneof)
	repeated := len(labels) > 0 && labels[0] == "repeated"
	typ, resolved := r.typeName(owner, f, f.Type)
	parts := append(labels, typ, r.g.dialect.FieldName(f.Name), "=", fmt.Sprint(f.Number))
	line := strings.Join(parts, " ")
	if f.Packed && repeated && f.Type.Packable() {
		line += " [packed=true]"
	}
	line += ";"
	if !resolved {
		line += unresolvedComment
	}
	return line
}

// typeName prints t as seen from owner. It reports false when part of the
// type could not be resolved and bytes was printed instead.
func (r *renderer) typeName(owner *schema.Node, f *schema.Field, t schema.FieldType) (string, bool) {
	switch {
	case t.Scalar == schema.ScalarMap:
		if t.Key == nil || t.Value == nil {
			return "bytes", false
		}
		k, kok := r.typeName(owner, f, *t.Key)
		v, vok := r.typeName(owner, f, *t.Value)
		return fmt.Sprintf("map<%s, %s>", k, v), kok && vok
	case t.Scalar.IsReference():
		if t.Ref == nil {
			return "bytes", false
		}
		r.checkImport(owner, f, t.Ref)
		return TypePath(owner, t.Ref), true
	case t.Scalar == schema.ScalarInvalid:
		return "bytes", false
	default:
		return t.Scalar.String(), true
	}
}

func (r *renderer) checkImport(owner *schema.Node, f *schema.Field, ref *schema.Node) {
	if ref.Module == owner.Module {
		return
	}
	for _, dep := range r.file.Dependencies {
		if dep == ref.Module {
			return
		}
	}
	r.g.diag.Warn(diag.StageSerialize, r.file.Name, "Field references a module that is not imported",
		zap.String("message", owner.QualifiedName()), zap.String("field", f.Name), zap.String("reference", ref.QualifiedName()))
}

// TypePath is the shortest dotted name of ref from inside owner: the path
// prefix they share is dropped, unless ref lives in another module, in
// which case the module name and the full path are used.
func TypePath(owner, ref *schema.Node) string {
	if ref.Module != owner.Module {
		return ref.QualifiedName()
	}
	from := owner.FullPath()
	shared := 0
	for shared < len(from) && shared < len(ref.Path) && from[shared] == ref.Path[shared] {
		shared++
	}
	return strings.Join(append(append([]string(nil), ref.Path[shared:]...), ref.Name), ".")
}
