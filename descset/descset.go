// Package descset builds protobuf descriptors equivalent to the rendered
// .proto text, so a run can also emit a binary FileDescriptorSet.
package descset

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/albertocavalcante/go-protorecon/dialect"
	"github.com/albertocavalcante/go-protorecon/protogen"
	"github.com/albertocavalcante/go-protorecon/schema"
)

var scalarTypes = map[schema.Scalar]descriptorpb.FieldDescriptorProto_Type{
	schema.ScalarInt32:    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	schema.ScalarInt64:    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	schema.ScalarUint32:   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	schema.ScalarUint64:   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	schema.ScalarSint32:   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	schema.ScalarSint64:   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	schema.ScalarBool:     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	schema.ScalarEnum:     descriptorpb.FieldDescriptorProto_TYPE_ENUM,
	schema.ScalarString:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	schema.ScalarBytes:    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
	schema.ScalarMessage:  descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
	schema.ScalarFixed32:  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	schema.ScalarSfixed32: descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	schema.ScalarFloat:    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	schema.ScalarFixed64:  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	schema.ScalarSfixed64: descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	schema.ScalarDouble:   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
}

// Build returns one FileDescriptorProto per rendered file. Messages the
// generator commented out as duplicates are left out.
func Build(d *dialect.Dialect, files []*schema.File, outputs []*protogen.Output) *descriptorpb.FileDescriptorSet {
	omitted := make(map[*schema.Node]bool)
	for _, o := range outputs {
		for _, n := range o.Omitted {
			omitted[n] = true
		}
	}
	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range files {
		b := &builder{d: d, proto3: d.SyntaxFor(f.Name) == dialect.Proto3}
		set.File = append(set.File, b.file(f, omitted))
	}
	return set
}

type builder struct {
	d      *dialect.Dialect
	proto3 bool
}

func (b *builder) file(f *schema.File, omitted map[*schema.Node]bool) *descriptorpb.FileDescriptorProto {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(b.d.OutputPath(f.Name)),
		Package: proto.String(f.Name),
		Syntax:  proto.String(b.d.SyntaxFor(f.Name)),
		Options: &descriptorpb.FileOptions{GoPackage: proto.String(b.d.GoImportPath(f.Name))},
	}
	for _, dep := range f.Dependencies {
		fd.Dependency = append(fd.Dependency, b.d.OutputPath(dep))
	}
	for _, e := range f.Enums {
		fd.EnumType = append(fd.EnumType, b.enum(e))
	}
	for _, m := range f.Messages {
		if omitted[m] {
			continue
		}
		fd.MessageType = append(fd.MessageType, b.message(m))
	}
	return fd
}

func (b *builder) enum(n *schema.Node) *descriptorpb.EnumDescriptorProto {
	ed := &descriptorpb.EnumDescriptorProto{Name: proto.String(n.Name)}
	for _, v := range b.d.EnumValues(n) {
		ed.Value = append(ed.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(int32(v.Number)),
		})
	}
	return ed
}

func (b *builder) message(n *schema.Node) *descriptorpb.DescriptorProto {
	md := &descriptorpb.DescriptorProto{Name: proto.String(n.Name)}
	for _, e := range n.Enums {
		md.EnumType = append(md.EnumType, b.enum(e))
	}
	for _, m := range n.Messages {
		md.NestedType = append(md.NestedType, b.message(m))
	}
	for i, o := range n.Oneofs {
		md.OneofDecl = append(md.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(o.Name)})
		for _, f := range o.Fields {
			fp := b.field(md, n, f)
			fp.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
			fp.Options = nil
			fp.OneofIndex = proto.Int32(int32(i))
			md.Field = append(md.Field, fp)
		}
	}
	for _, f := range n.Fields {
		md.Field = append(md.Field, b.field(md, n, f))
	}
	return md
}

func (b *builder) field(md *descriptorpb.DescriptorProto, owner *schema.Node, f *schema.Field) *descriptorpb.FieldDescriptorProto {
	fp := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(b.d.FieldName(f.Name)),
		Number: proto.Int32(int32(f.Number)),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	switch {
	case f.Repeated:
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	case f.Required && !b.proto3:
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	}

	if f.IsMap() && f.Type.Key != nil && f.Type.Value != nil {
		entry := &descriptorpb.DescriptorProto{
			Name:    proto.String(MapEntryName(fp.GetName())),
			Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
		}
		key := &descriptorpb.FieldDescriptorProto{Name: proto.String("key"), Number: proto.Int32(1)}
		b.setType(key, *f.Type.Key)
		value := &descriptorpb.FieldDescriptorProto{Name: proto.String("value"), Number: proto.Int32(2)}
		b.setType(value, *f.Type.Value)
		for _, kv := range []*descriptorpb.FieldDescriptorProto{key, value} {
			kv.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
		}
		entry.Field = []*descriptorpb.FieldDescriptorProto{key, value}
		md.NestedType = append(md.NestedType, entry)

		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
		fp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		fp.TypeName = proto.String("." + owner.QualifiedName() + "." + entry.GetName())
		return fp
	}

	b.setType(fp, f.Type)
	if f.Packed && f.Repeated && f.Type.Packable() {
		fp.Options = &descriptorpb.FieldOptions{Packed: proto.Bool(true)}
	}
	return fp
}

// setType fills in the type of fp. Unresolved types become bytes, as in
// the text output.
func (b *builder) setType(fp *descriptorpb.FieldDescriptorProto, t schema.FieldType) {
	if t.Scalar.IsReference() && t.Ref != nil {
		if t.Ref.Kind == schema.KindEnum {
			fp.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		} else {
			fp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		}
		fp.TypeName = proto.String("." + t.Ref.QualifiedName())
		return
	}
	typ, ok := scalarTypes[t.Scalar]
	if !ok || t.Scalar.IsReference() {
		typ = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	}
	fp.Type = typ.Enum()
}

// MapEntryName derives the synthetic entry message name for a map field
// the way protoc does: underscores are dropped, the following letter and
// the first letter are upper-cased, and "Entry" is appended.
func MapEntryName(field string) string {
	var sb strings.Builder
	upperNext := true
	for _, c := range field {
		switch {
		case c == '_':
			upperNext = true
		case upperNext:
			sb.WriteRune(unicode.ToUpper(c))
			upperNext = false
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteString("Entry")
	return sb.String()
}

// Link resolves the set into a registry in file order. Imports that are
// not part of the set are tolerated. Files that fail to link are skipped
// and reported together in the returned error.
func Link(set *descriptorpb.FileDescriptorSet) (*protoregistry.Files, error) {
	registry := new(protoregistry.Files)
	opts := protodesc.FileOptions{AllowUnresolvable: true}
	var errs []error
	for _, fdp := range set.GetFile() {
		fd, err := opts.New(fdp, registry)
		if err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", fdp.GetName(), err))
			continue
		}
		if err := registry.RegisterFile(fd); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", fdp.GetName(), err))
		}
	}
	return registry, errors.Join(errs...)
}

// Marshal encodes the set deterministically.
func Marshal(set *descriptorpb.FileDescriptorSet) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(set)
}
