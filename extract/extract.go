// Package extract rebuilds the schema tree from the exports of loaded
// modules.
//
// Every schema module exports message specs (objects carrying an
// internalSpec field table) and enums. Export names encode the nesting
// path; field tables encode field numbers, type tags and modifier flags
// using the constants module's tables. Type references are object
// identities, so the extractor keeps one map from exported object to node
// across all modules.
package extract

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-protorecon/dialect"
	"github.com/albertocavalcante/go-protorecon/internal/diag"
	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/schema"
	"github.com/albertocavalcante/go-protorecon/value"
	"go.uber.org/zap"
)

const (
	specKey     = "internalSpec"
	oneofsKey   = "__oneofs__"
	reservedKey = "__reserved__"
)

// Extractor converts loaded modules into schema files.
type Extractor struct {
	dialect *dialect.Dialect
	diag    *diag.Collector
	consts  *Constants

	nodes   map[*value.Object]*schema.Node
	pending []pendingSpec
}

type pendingSpec struct {
	node *schema.Node
	spec *value.Object
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCollector sets where warnings are recorded.
func WithCollector(c *diag.Collector) Option {
	return func(e *Extractor) {
		e.diag = c
	}
}

// New returns an extractor for dialect d.
func New(d *dialect.Dialect, opts ...Option) *Extractor {
	e := &Extractor{
		dialect: d,
		nodes:   make(map[*value.Object]*schema.Node),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.diag == nil {
		e.diag = diag.NewCollector(nil)
	}
	return e
}

// Extract builds one file per schema module, in module order. Modules
// with no exports and legacy alias modules produce no file.
func (e *Extractor) Extract(modules []*loader.Module) ([]*schema.File, error) {
	consts, err := e.constants(modules)
	if err != nil {
		return nil, err
	}
	e.consts = consts

	var files []*schema.File
	for _, m := range modules {
		if m.Builtin || !e.dialect.IsSchemaModule(m.Name) {
			continue
		}
		if alias, ok := e.dialect.LegacyAlias(m.Name); ok {
			e.alias(m, alias)
			continue
		}
		if m.Exports == nil || m.Exports.Len() == 0 {
			e.warn(m.Name, "Module has no exports")
			continue
		}
		files = append(files, e.structure(m))
	}

	for _, p := range e.pending {
		e.fields(p.node, p.spec)
	}
	e.pending = nil
	return files, nil
}

func (e *Extractor) constants(modules []*loader.Module) (*Constants, error) {
	for _, m := range modules {
		if m.Name == e.dialect.ConstantsModule {
			c, err := ReadConstants(m.Exports)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Name, err)
			}
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: module %s was not loaded", ErrConstantsMissing, e.dialect.ConstantsModule)
}

// warn reports under the package name, whether given a module name or a
// package name.
func (e *Extractor) warn(module, msg string, fields ...zap.Field) {
	e.diag.Warn(diag.StageExtract, e.dialect.PackageName(module), msg, fields...)
}

// alias binds a legacy module's export to a detached node that names the
// canonical type, so references to it render against the target module.
func (e *Extractor) alias(m *loader.Module, alias dialect.LegacyAlias) {
	if m.Exports.Len() > 1 {
		e.warn(m.Name, "Legacy module has more than one export", zap.Int("exports", m.Exports.Len()))
	}
	obj, ok := value.Member(m.Exports, alias.Export).(*value.Object)
	if !ok {
		e.warn(m.Name, "Legacy module does not export the aliased type", zap.String("export", alias.Export))
		return
	}
	node := schema.NewMessage(alias.TargetModule, nil, alias.TargetName)
	node.Defined = true
	e.nodes[obj] = node
}

func (e *Extractor) structure(m *loader.Module) *schema.File {
	pkg := e.dialect.PackageName(m.Name)
	file := schema.NewFile(pkg, m.Name, e.dialect.Imports(m.Dependencies))

	type deferred struct {
		export string
		obj    *value.Object
		values []schema.EnumValue
	}
	var upper []deferred

	for _, export := range m.Exports.Keys() {
		v, _ := m.Exports.Get(export)
		obj, ok := v.(*value.Object)
		if !ok {
			e.warn(m.Name, "Export has no recognizable content", zap.String("export", export))
			continue
		}
		path := e.dialect.TypePath(pkg, export)
		name := path[len(path)-1]
		parents := path[:len(path)-1]

		if spec, ok := value.Member(obj, specKey).(*value.Object); ok {
			scope := e.dereference(file, pkg, parents)
			node := scope.AddMessage(schema.NewMessage(pkg, parents, name))
			node.Defined = true
			e.nodes[obj] = node
			e.pending = append(e.pending, pendingSpec{node: node, spec: spec})
			continue
		}
		values, ok := e.enumValues(m.Name, export, obj)
		if !ok {
			continue
		}
		if len(parents) == 0 && strings.ToUpper(export) == export {
			upper = append(upper, deferred{export: export, obj: obj, values: values})
			continue
		}
		node := schema.NewEnum(pkg, parents, name)
		node.Values = values
		e.dereference(file, pkg, parents).SetEnum(node)
		e.nodes[obj] = node
	}

	for _, d := range upper {
		scope, parents, name := nestUpper(&file.Scope, nil, upperParts(d.export))
		if len(parents) == 0 {
			e.warn(m.Name, "No enclosing message matched upper-case enum, keeping it at the module root",
				zap.String("export", d.export), zap.String("name", name))
		}
		node := schema.NewEnum(pkg, parents, name)
		node.Values = d.values
		scope.SetEnum(node)
		e.nodes[d.obj] = node
	}
	return file
}

// dereference returns the scope at path, creating placeholder messages for
// missing segments.
func (e *Extractor) dereference(file *schema.File, pkg string, path []string) *schema.Scope {
	scope := &file.Scope
	for i, seg := range path {
		node := scope.AddMessage(schema.NewMessage(pkg, path[:i], seg))
		scope = &node.Scope
	}
	return scope
}

func (e *Extractor) enumValues(module, export string, obj *value.Object) ([]schema.EnumValue, bool) {
	var values []schema.EnumValue
	for _, key := range obj.Keys() {
		if isMeta(key) {
			continue
		}
		v, _ := obj.Get(key)
		n, ok := v.(value.Number)
		if !ok {
			continue
		}
		i, ok := n.Int()
		if !ok {
			e.warn(module, "Enum value is not an integer", zap.String("export", export), zap.String("value", key))
			continue
		}
		values = append(values, schema.EnumValue{Name: key, Number: i})
	}
	if len(values) == 0 && !obj.IsEnum() {
		e.warn(module, "Export has no recognizable content", zap.String("export", export))
		return nil, false
	}
	return values, true
}

// upperParts splits SCREAMING_CASE into capitalized words.
func upperParts(name string) []string {
	words := strings.Split(name, "_")
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		parts = append(parts, w[:1]+strings.ToLower(w[1:]))
	}
	return parts
}

// nestUpper descends into the child message whose name is the longest
// concatenation of leading parts, leaving at least one part for the enum's
// own name. It stops when no child matches.
func nestUpper(scope *schema.Scope, path, parts []string) (*schema.Scope, []string, string) {
	for k := len(parts) - 1; k > 0; k-- {
		if child := scope.Message(strings.Join(parts[:k], "")); child != nil {
			return nestUpper(&child.Scope, append(path, child.Name), parts[k:])
		}
	}
	return scope, path, strings.Join(parts, "")
}

func isMeta(key string) bool {
	return len(key) > 4 && strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__")
}

func (e *Extractor) fields(node *schema.Node, spec *value.Object) {
	var oneofs *value.Object
	for _, key := range spec.Keys() {
		v, _ := spec.Get(key)
		switch {
		case key == oneofsKey:
			oneofs, _ = v.(*value.Object)
		case key == reservedKey:
			node.Reserved = intList(v)
			e.warn(node.Module, "Found reserved field numbers", zap.String("message", node.QualifiedName()), zap.Ints("reserved", node.Reserved))
		case isMeta(key):
		default:
			if f := e.field(node, key, v); f != nil {
				node.Fields = append(node.Fields, f)
			}
		}
	}
	if oneofs != nil {
		e.groupOneofs(node, oneofs)
	}
}

func intList(v value.Value) []int {
	arr, ok := v.(*value.Array)
	if !ok {
		return nil
	}
	var out []int
	for _, elem := range arr.Elems {
		if n, ok := elem.(value.Number); ok {
			if i, ok := n.Int(); ok {
				out = append(out, i)
			}
		}
	}
	return out
}

func (e *Extractor) field(node *schema.Node, name string, v value.Value) *schema.Field {
	def, ok := v.(*value.Array)
	if !ok {
		e.warn(node.Module, "Field definition is not an array", zap.String("message", node.QualifiedName()), zap.String("field", name))
		return nil
	}
	numberValue, ok := def.At(0).(value.Number)
	number, isInt := numberValue.Int()
	if !ok || !isInt {
		e.warn(node.Module, "Field has no numeric index", zap.String("message", node.QualifiedName()), zap.String("field", name))
		return nil
	}
	flags := int(value.ToNumber(def.At(1)).Int32())
	d := e.consts.Decode(flags)

	f := &schema.Field{
		Name:     name,
		Number:   number,
		Repeated: d.Repeated,
		Packed:   d.Packed,
		Required: d.Required,
	}
	switch {
	case d.Scalar == schema.ScalarInvalid:
		f.Unresolved = fmt.Sprintf("type tag %d", d.Tag)
		e.warn(node.Module, "Unknown field type tag", zap.String("message", node.QualifiedName()), zap.String("field", name), zap.Int("tag", d.Tag))
	case d.Scalar == schema.ScalarMap:
		f.Type = e.mapType(node, f, def.At(2))
	case d.Scalar.IsReference():
		f.Type = schema.FieldType{Scalar: d.Scalar}
		if ref := e.reference(node, f, def.At(2)); ref != nil {
			f.Type.Ref = ref
		}
	default:
		f.Type = schema.FieldType{Scalar: d.Scalar}
	}
	return f
}

func (e *Extractor) reference(node *schema.Node, f *schema.Field, ref value.Value) *schema.Node {
	if obj, ok := ref.(*value.Object); ok {
		if target, ok := e.nodes[obj]; ok {
			return target
		}
	}
	f.Unresolved = describe(ref)
	e.warn(node.Module, "Unresolved type reference", zap.String("message", node.QualifiedName()),
		zap.String("field", f.Name), zap.String("reference", f.Unresolved))
	return nil
}

func (e *Extractor) mapType(node *schema.Node, f *schema.Field, ref value.Value) schema.FieldType {
	t := schema.FieldType{Scalar: schema.ScalarMap}
	pair, ok := ref.(*value.Array)
	if !ok || len(pair.Elems) != 2 {
		f.Unresolved = "map without key and value types"
		e.warn(node.Module, "Malformed map field", zap.String("message", node.QualifiedName()), zap.String("field", f.Name))
		return t
	}
	t.Key = e.mapElem(node, f, pair.At(0))
	t.Value = e.mapElem(node, f, pair.At(1))
	return t
}

// mapElem decodes one side of a map: a number is a bare type tag, an
// object is a reference.
func (e *Extractor) mapElem(node *schema.Node, f *schema.Field, v value.Value) *schema.FieldType {
	switch x := v.(type) {
	case value.Number:
		tag, _ := x.Int()
		s := e.consts.Scalar(tag)
		if s == schema.ScalarInvalid {
			f.Unresolved = fmt.Sprintf("map type tag %d", tag)
			e.warn(node.Module, "Unknown map type tag", zap.String("message", node.QualifiedName()), zap.String("field", f.Name), zap.Int("tag", tag))
		}
		return &schema.FieldType{Scalar: s}
	default:
		ref := e.reference(node, f, v)
		if ref == nil {
			return &schema.FieldType{Scalar: schema.ScalarMessage}
		}
		if ref.Kind == schema.KindEnum {
			return &schema.FieldType{Scalar: schema.ScalarEnum, Ref: ref}
		}
		return &schema.FieldType{Scalar: schema.ScalarMessage, Ref: ref}
	}
}

func describe(v value.Value) string {
	switch x := v.(type) {
	case nil, value.Undefined:
		return "undefined"
	case value.Null:
		return "null"
	case *value.Object:
		return fmt.Sprintf("object with %d properties", x.Len())
	default:
		return fmt.Sprintf("%T", v)
	}
}

// groupOneofs moves the fields each oneof lists out of the flat field list,
// in the order the oneof lists them.
func (e *Extractor) groupOneofs(node *schema.Node, oneofs *value.Object) {
	for _, name := range oneofs.Keys() {
		members, ok := value.Member(oneofs, name).(*value.Array)
		if !ok {
			e.warn(node.Module, "Oneof member list is not an array", zap.String("message", node.QualifiedName()), zap.String("oneof", name))
			continue
		}
		group := &schema.Oneof{Name: name}
		for _, m := range members.Elems {
			fieldName, ok := m.(value.String)
			if !ok {
				continue
			}
			f := takeField(node, string(fieldName))
			if f == nil {
				e.warn(node.Module, "Oneof names an unknown field", zap.String("message", node.QualifiedName()),
					zap.String("oneof", name), zap.String("field", string(fieldName)))
				continue
			}
			group.Fields = append(group.Fields, f)
		}
		node.Oneofs = append(node.Oneofs, group)
	}
}

func takeField(node *schema.Node, name string) *schema.Field {
	for i, f := range node.Fields {
		if f.Name == name {
			node.Fields = append(node.Fields[:i:i], node.Fields[i+1:]...)
			return f
		}
	}
	return nil
}
