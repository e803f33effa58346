// Package schema holds the reconstructed protobuf schema tree.
//
// A File corresponds to one top-level module. Messages and enums are Nodes
// identified by (module, path, name), where path lists the enclosing message
// names. The extractor builds the tree; everything downstream treats it as
// read-only.
package schema

import (
	"strings"
)

// Kind distinguishes messages from enums.
type Kind int

const (
	KindMessage Kind = iota
	KindEnum
)

func (k Kind) String() string {
	if k == KindEnum {
		return "enum"
	}
	return "message"
}

// Scalar is a field's wire type tag.
type Scalar int

const (
	ScalarInvalid Scalar = iota
	ScalarInt32
	ScalarInt64
	ScalarUint32
	ScalarUint64
	ScalarSint32
	ScalarSint64
	ScalarBool
	ScalarEnum
	ScalarString
	ScalarBytes
	ScalarMessage
	ScalarFixed32
	ScalarSfixed32
	ScalarFloat
	ScalarFixed64
	ScalarSfixed64
	ScalarDouble
	ScalarMap
)

var scalarNames = map[Scalar]string{
	ScalarInt32:    "int32",
	ScalarInt64:    "int64",
	ScalarUint32:   "uint32",
	ScalarUint64:   "uint64",
	ScalarSint32:   "sint32",
	ScalarSint64:   "sint64",
	ScalarBool:     "bool",
	ScalarEnum:     "enum",
	ScalarString:   "string",
	ScalarBytes:    "bytes",
	ScalarMessage:  "message",
	ScalarFixed32:  "fixed32",
	ScalarSfixed32: "sfixed32",
	ScalarFloat:    "float",
	ScalarFixed64:  "fixed64",
	ScalarSfixed64: "sfixed64",
	ScalarDouble:   "double",
	ScalarMap:      "map",
}

// String returns the protobuf keyword for the tag.
func (s Scalar) String() string {
	if name, ok := scalarNames[s]; ok {
		return name
	}
	return "invalid"
}

// IsReference reports whether the tag refers to another node.
func (s Scalar) IsReference() bool {
	return s == ScalarMessage || s == ScalarEnum
}

// ScalarByName maps the upper-case constant names used by the bundle's
// TYPES table to tags.
func ScalarByName(name string) Scalar {
	for s, n := range scalarNames {
		if strings.EqualFold(n, name) {
			return s
		}
	}
	return ScalarInvalid
}

// Scope is an ordered container of child messages and enums.
type Scope struct {
	Messages []*Node
	Enums    []*Node

	messageIndex map[string]*Node
	enumIndex    map[string]*Node
}

// Message returns the child message called name.
func (s *Scope) Message(name string) *Node {
	return s.messageIndex[name]
}

// Enum returns the child enum called name.
func (s *Scope) Enum(name string) *Node {
	return s.enumIndex[name]
}

// AddMessage appends a child message, or returns the existing one with the
// same name.
func (s *Scope) AddMessage(n *Node) *Node {
	if existing := s.Message(n.Name); existing != nil {
		return existing
	}
	if s.messageIndex == nil {
		s.messageIndex = make(map[string]*Node)
	}
	s.messageIndex[n.Name] = n
	s.Messages = append(s.Messages, n)
	return n
}

// SetEnum adds or replaces a child enum, keeping the original position on
// replacement.
func (s *Scope) SetEnum(n *Node) {
	if s.enumIndex == nil {
		s.enumIndex = make(map[string]*Node)
	}
	if existing, ok := s.enumIndex[n.Name]; ok {
		for i, e := range s.Enums {
			if e == existing {
				s.Enums[i] = n
			}
		}
	} else {
		s.Enums = append(s.Enums, n)
	}
	s.enumIndex[n.Name] = n
}

// IsEmpty reports whether the scope has no children.
func (s *Scope) IsEmpty() bool {
	return len(s.Messages) == 0 && len(s.Enums) == 0
}

// Node is a message or an enum.
type Node struct {
	Scope

	Kind   Kind
	Module string
	Path   []string
	Name   string

	// Message content.
	Fields   []*Field
	Oneofs   []*Oneof
	Reserved []int

	// Defined is false for messages that only exist because a nested
	// declaration named them as a parent.
	Defined bool

	// Enum content, in declaration order.
	Values []EnumValue
}

// NewMessage returns an empty message node.
func NewMessage(module string, path []string, name string) *Node {
	return &Node{Kind: KindMessage, Module: module, Path: clonePath(path), Name: name}
}

// NewEnum returns an empty enum node.
func NewEnum(module string, path []string, name string) *Node {
	return &Node{Kind: KindEnum, Module: module, Path: clonePath(path), Name: name}
}

// FullPath is Path followed by Name.
func (n *Node) FullPath() []string {
	out := make([]string, 0, len(n.Path)+1)
	out = append(out, n.Path...)
	return append(out, n.Name)
}

// QualifiedName is the dotted name including the module.
func (n *Node) QualifiedName() string {
	return n.Module + "." + strings.Join(n.FullPath(), ".")
}

// AllFields returns oneof members followed by plain fields.
func (n *Node) AllFields() []*Field {
	var out []*Field
	for _, o := range n.Oneofs {
		out = append(out, o.Fields...)
	}
	return append(out, n.Fields...)
}

// Field is one message field.
type Field struct {
	Name     string
	Number   int
	Type     FieldType
	Repeated bool
	Packed   bool
	Required bool

	// Unresolved holds a description of a type reference that could not be
	// resolved; Type.Ref is nil in that case.
	Unresolved string
}

// IsMap reports whether the field is a map.
func (f *Field) IsMap() bool {
	return f.Type.Scalar == ScalarMap
}

// FieldType is a scalar, a reference to another node, or a map.
type FieldType struct {
	Scalar Scalar
	Ref    *Node

	// Key and Value are set for maps.
	Key   *FieldType
	Value *FieldType
}

// Packable reports whether a repeated field of this type may use packed
// encoding: numeric scalars, bools and resolved enums.
func (t FieldType) Packable() bool {
	switch t.Scalar {
	case ScalarInvalid, ScalarString, ScalarBytes, ScalarMessage, ScalarMap:
		return false
	case ScalarEnum:
		return t.Ref != nil && t.Ref.Kind == KindEnum
	}
	return true
}

// Oneof is a named group of mutually exclusive fields.
type Oneof struct {
	Name   string
	Fields []*Field
}

// EnumValue is one enum entry.
type EnumValue struct {
	Name   string
	Number int
}

// File is the schema of one top-level module.
type File struct {
	Scope

	// Name is the package name, e.g. "WACommon".
	Name string

	// Source is the module name the file was extracted from.
	Source string

	// Dependencies lists imported package names in declared order.
	Dependencies []string
}

// NewFile returns an empty file.
func NewFile(name, source string, deps []string) *File {
	return &File{Name: name, Source: source, Dependencies: deps}
}

// Lookup finds a node by its full path below this file.
func (f *File) Lookup(path ...string) *Node {
	if len(path) == 0 {
		return nil
	}
	scope := &f.Scope
	for i, seg := range path {
		last := i == len(path)-1
		if last {
			if m := scope.Message(seg); m != nil {
				return m
			}
			return scope.Enum(seg)
		}
		m := scope.Message(seg)
		if m == nil {
			return nil
		}
		scope = &m.Scope
	}
	return nil
}

// Walk visits every node below scope depth-first, enums before messages at
// each level.
func Walk(scope *Scope, fn func(*Node)) {
	for _, e := range scope.Enums {
		fn(e)
	}
	for _, m := range scope.Messages {
		fn(m)
		Walk(&m.Scope, fn)
	}
}

func clonePath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
