package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-protorecon/dialect"
	"github.com/albertocavalcante/go-protorecon/internal/diag"
	"github.com/albertocavalcante/go-protorecon/internal/fixture"
	"github.com/albertocavalcante/go-protorecon/jsast"
	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/schema"
	"github.com/albertocavalcante/go-protorecon/value"
)

func load(t *testing.T, d *dialect.Dialect, src string) []*loader.Module {
	t.Helper()
	result, err := jsast.ParseContent("bundle.js", []byte(src))
	require.NoError(t, err)
	l := loader.New(d.LoaderOptions()...)
	require.NoError(t, jsast.Register(l, result.Declarations))
	require.NoError(t, l.LoadAll())
	return l.Modules()
}

func extract(t *testing.T, d *dialect.Dialect, modules []*loader.Module) ([]*schema.File, *diag.Collector) {
	t.Helper()
	c := diag.NewCollector(nil)
	files, err := New(d, WithCollector(c)).Extract(modules)
	require.NoError(t, err)
	return files, c
}

func fileNames(files []*schema.File) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func nodeNames(nodes []*schema.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func fieldNames(fields []*schema.Field) []string {
	var out []string
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func fieldByName(t *testing.T, n *schema.Node, name string) *schema.Field {
	t.Helper()
	for _, f := range n.AllFields() {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("%s has no field %s", n.QualifiedName(), name)
	return nil
}

func warningsFor(c *diag.Collector, module string) []string {
	var out []string
	for _, w := range c.Warnings() {
		if w.Module == module {
			out = append(out, w.Message)
		}
	}
	return out
}

func TestExtract_Web(t *testing.T) {
	d := dialect.Web()
	files, c := extract(t, d, load(t, d, fixture.Web))

	require.Equal(t, []string{"WACommon", "WAWebProtobufsE2E", "WAAdv", "WACompanionReg"}, fileNames(files))
	e2e := files[1]
	assert.Equal(t, "WAWebProtobufsE2E.pb", e2e.Source)
	assert.Equal(t, []string{"WACommon"}, e2e.Dependencies)
	assert.Equal(t, []string{"ExtendedTextMessage", "ContextInfo", "Message", "MessageContextInfo"}, nodeNames(e2e.Messages))
	assert.Empty(t, e2e.Enums)

	ext := e2e.Lookup("ExtendedTextMessage")
	require.NotNil(t, ext)
	assert.True(t, ext.Defined)
	assert.Equal(t, []string{"FontType", "InviteLinkGroupType"}, nodeNames(ext.Enums))
	assert.Equal(t, []int{3, 4}, ext.Reserved)
	assert.Equal(t, []string{"text", "matchedText", "font", "contextInfo", "jpegThumbnail", "mediaKeyTimestamp"}, fieldNames(ext.Fields))

	invite := e2e.Lookup("ExtendedTextMessage", "InviteLinkGroupType")
	require.NotNil(t, invite)
	assert.Equal(t, []string{"ExtendedTextMessage"}, invite.Path)
	assert.Equal(t, []schema.EnumValue{{Name: "DEFAULT", Number: 0}, {Name: "PARENT", Number: 1}, {Name: "SUB_GROUP", Number: 2}}, invite.Values)

	paired := e2e.Lookup("ContextInfo", "PairedMediaType")
	require.NotNil(t, paired)
	assert.Equal(t, []schema.EnumValue{{Name: "SD_VIDEO_PARENT", Number: 1}, {Name: "NOT_PAIRED", Number: -1}}, paired.Values)

	msg := e2e.Lookup("Message")
	require.NotNil(t, msg)
	require.Len(t, msg.Oneofs, 1)
	assert.Equal(t, "content", msg.Oneofs[0].Name)
	assert.Equal(t, []string{"conversation", "imageURL"}, fieldNames(msg.Oneofs[0].Fields))
	assert.Equal(t, []string{"extendedTextMessage", "messageContextInfo"}, fieldNames(msg.Fields))
	assert.Same(t, ext, fieldByName(t, msg, "extendedTextMessage").Type.Ref)

	ctx := e2e.Lookup("ContextInfo")
	quoted := fieldByName(t, ctx, "quotedMessage")
	assert.Same(t, msg, quoted.Type.Ref)
	mentioned := fieldByName(t, ctx, "mentionedJID")
	assert.True(t, mentioned.Repeated)
	assert.Equal(t, schema.ScalarString, mentioned.Type.Scalar)
	assert.True(t, fieldByName(t, ctx, "entryPointConversionSource").Required)
	assert.Same(t, paired, fieldByName(t, ctx, "pairedMediaType").Type.Ref)

	key := fieldByName(t, ctx, "key").Type.Ref
	require.NotNil(t, key)
	assert.Same(t, files[0].Lookup("MessageKey"), key)
	assert.Equal(t, "WACommon.MessageKey", key.QualifiedName())

	info := e2e.Lookup("MessageContextInfo")
	sample := fieldByName(t, info, "sampleIDs")
	assert.True(t, sample.Repeated)
	assert.True(t, sample.Packed)
	assert.Equal(t, schema.ScalarUint32, sample.Type.Scalar)

	threads := fieldByName(t, info, "threadIDs")
	require.True(t, threads.IsMap())
	assert.Equal(t, schema.ScalarString, threads.Type.Key.Scalar)
	assert.Equal(t, schema.ScalarInt64, threads.Type.Value.Scalar)

	sub := fieldByName(t, info, "subProtocols")
	require.True(t, sub.IsMap())
	assert.Equal(t, schema.ScalarMessage, sub.Type.Value.Scalar)
	assert.Same(t, files[0].Lookup("SubProtocol"), sub.Type.Value.Ref)

	companion := files[3]
	assert.Equal(t, []string{"WAAdv"}, companion.Dependencies)
	identity := companion.Lookup("CompanionEphemeralIdentity")
	require.NotNil(t, identity)
	assert.Same(t, files[2].Lookup("ADVSignedDeviceIdentity"), fieldByName(t, identity, "identity").Type.Ref)
	assert.Same(t, files[2].Lookup("ADVKeyIndexList"), fieldByName(t, identity, "keyIndex").Type.Ref)
	assert.NotNil(t, companion.Lookup("ADVKeyIndexList"))

	assert.Equal(t, []string{"Module has no exports"}, warningsFor(c, "WAEmpty"))
	assert.Equal(t, []string{"Found reserved field numbers"}, warningsFor(c, "WAWebProtobufsE2E"))
	assert.Equal(t, 2, c.Len())
	for _, w := range c.Warnings() {
		assert.NotContains(t, w.Module, ".pb", "warnings name packages, not modules")
	}
}

func TestExtract_Armadillo(t *testing.T) {
	d := dialect.Armadillo()
	files, c := extract(t, d, load(t, d, fixture.Armadillo))

	require.Equal(t, []string{"WACommon", "WAArmadilloApplication"}, fileNames(files))
	app := files[1]
	assert.Equal(t, []string{"WACommon"}, app.Dependencies)

	arm := app.Lookup("Armadillo")
	require.NotNil(t, arm)
	assert.Equal(t, []string{"Kind"}, nodeNames(arm.Enums))
	assert.Equal(t, []string{"Envelope"}, nodeNames(arm.Messages))

	require.Len(t, arm.Oneofs, 1)
	body := arm.Oneofs[0]
	assert.Equal(t, "body", body.Name)
	assert.Equal(t, []string{"labels", "text"}, fieldNames(body.Fields))
	assert.True(t, body.Fields[0].Repeated)
	assert.Equal(t, []string{"key", "kind", "scores"}, fieldNames(arm.Fields))

	key := fieldByName(t, arm, "key").Type.Ref
	require.NotNil(t, key)
	assert.Equal(t, "WACommon.MessageKey", key.QualifiedName())
	assert.NotSame(t, files[0].Lookup("MessageKey"), key, "legacy alias is a detached node")
	assert.Empty(t, key.Path)

	envelope := app.Lookup("Armadillo", "Envelope")
	assert.Same(t, arm, fieldByName(t, envelope, "payload").Type.Ref)

	assert.Zero(t, c.Len(), "warnings: %v", c.Warnings())
}

func TestExtract_ConstantsMissing(t *testing.T) {
	d := dialect.Armadillo()
	_, err := New(d).Extract([]*loader.Module{{Name: "WACommon.pb", Exports: value.NewObject()}})
	assert.ErrorIs(t, err, ErrConstantsMissing)
}

var typeNames = []string{
	"INT32", "INT64", "UINT32", "UINT64", "SINT32", "SINT64", "BOOL", "ENUM", "STRING",
	"BYTES", "MESSAGE", "FIXED32", "SFIXED32", "FLOAT", "FIXED64", "SFIXED64", "DOUBLE", "MAP",
}

const (
	tagInt32   = 1
	tagString  = 9
	tagMessage = 11
	repeated   = 512
)

func constantsModule() *loader.Module {
	types := value.NewObject()
	for i, name := range typeNames {
		types.Set(name, value.Number(i+1))
	}
	flags := value.NewObject()
	flags.Set("PACKED", value.Number(256))
	flags.Set("REPEATED", value.Number(512))
	flags.Set("REQUIRED", value.Number(1024))
	exports := value.NewObject()
	exports.Set("TYPES", types)
	exports.Set("TYPE_MASK", value.Number(31))
	exports.Set("FLAGS", flags)
	return &loader.Module{Name: "WAProtoConst", Exports: exports}
}

func field(number, flags int, ref ...value.Value) *value.Array {
	elems := []value.Value{value.Number(number), value.Number(flags)}
	return &value.Array{Elems: append(elems, ref...)}
}

func message(fields map[string]value.Value, order ...string) *value.Object {
	spec := value.NewObject()
	for _, name := range order {
		spec.Set(name, fields[name])
	}
	obj := value.NewObject()
	obj.Set("internalSpec", spec)
	return obj
}

func enum(values ...string) *value.Object {
	obj := value.NewObject()
	for i, name := range values {
		obj.Set(name, value.Number(i))
	}
	obj.MarkEnum()
	return obj
}

func TestReadConstants(t *testing.T) {
	c, err := ReadConstants(constantsModule().Exports)
	require.NoError(t, err)

	got := c.Decode(tagString | repeated | 256)
	want := Decoded{Tag: tagString, Scalar: schema.ScalarString, Repeated: true, Packed: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, schema.ScalarMap, c.Scalar(18))
	assert.Equal(t, schema.ScalarInvalid, c.Scalar(99))
}

func TestReadConstants_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*value.Object)
	}{
		{"no types", func(o *value.Object) { o.Delete("TYPES") }},
		{"empty types", func(o *value.Object) { o.Set("TYPES", value.NewObject()) }},
		{"no mask", func(o *value.Object) { o.Delete("TYPE_MASK") }},
		{"fractional mask", func(o *value.Object) { o.Set("TYPE_MASK", value.Number(1.5)) }},
		{"no flags", func(o *value.Object) { o.Delete("FLAGS") }},
		{"incomplete flags", func(o *value.Object) {
			flags := value.NewObject()
			flags.Set("PACKED", value.Number(256))
			o.Set("FLAGS", flags)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exports := constantsModule().Exports
			tt.modify(exports)
			_, err := ReadConstants(exports)
			assert.ErrorIs(t, err, ErrConstantsMissing)
		})
	}
}

func TestExtract_RecoverableProblems(t *testing.T) {
	stray := value.NewObject()
	stray.Set("internalSpec", value.NewObject())

	exports := value.NewObject()
	exports.Set("HolderSpec", message(map[string]value.Value{
		"orphan":     field(1, tagMessage, stray),
		"missing":    field(2, tagMessage),
		"mystery":    field(3, 30),
		"badMap":     field(4, 18, value.Number(tagString)),
		"notAField":  value.String("x"),
		"noNumber":   &value.Array{Elems: []value.Value{value.String("one"), value.Number(tagString)}},
		"__oneofs__": oneofs("choice", "orphan", "ghost"),
	}, "orphan", "missing", "mystery", "badMap", "notAField", "noNumber", "__oneofs__"))
	exports.Set("Noise", value.NewObject())
	exports.Set("Scalar", value.Number(3))
	exports.Set("LONELY_ENUM", enum("UNSET"))

	c := diag.NewCollector(nil)
	files, err := New(dialect.Web(), WithCollector(c)).Extract([]*loader.Module{
		constantsModule(),
		{Name: "WATest.pb", Exports: exports},
	})
	require.NoError(t, err)
	require.Len(t, files, 1)

	holder := files[0].Lookup("Holder")
	require.NotNil(t, holder)
	assert.Equal(t, []string{"missing", "mystery", "badMap"}, fieldNames(holder.Fields))
	require.Len(t, holder.Oneofs, 1)
	assert.Equal(t, []string{"orphan"}, fieldNames(holder.Oneofs[0].Fields))

	orphan := holder.Oneofs[0].Fields[0]
	assert.Nil(t, orphan.Type.Ref)
	assert.Equal(t, "object with 1 properties", orphan.Unresolved)
	assert.Equal(t, "undefined", fieldByName(t, holder, "missing").Unresolved)
	assert.Equal(t, "type tag 30", fieldByName(t, holder, "mystery").Unresolved)
	assert.NotEmpty(t, fieldByName(t, holder, "badMap").Unresolved)

	lonely := files[0].Lookup("LonelyEnum")
	require.NotNil(t, lonely)
	assert.Empty(t, lonely.Path)

	assert.Equal(t, []string{
		"Export has no recognizable content",
		"Export has no recognizable content",
		"No enclosing message matched upper-case enum, keeping it at the module root",
	}, warningsFor(c, "WATest.pb"))
	assert.Equal(t, []string{
		"Unresolved type reference",
		"Unresolved type reference",
		"Unknown field type tag",
		"Malformed map field",
		"Field definition is not an array",
		"Field has no numeric index",
		"Oneof names an unknown field",
	}, warningsFor(c, "WATest"))
}

func oneofs(name string, members ...string) *value.Object {
	arr := &value.Array{}
	for _, m := range members {
		arr.Elems = append(arr.Elems, value.String(m))
	}
	obj := value.NewObject()
	obj.Set(name, arr)
	return obj
}

func TestExtract_LegacyAliasWithExtraExports(t *testing.T) {
	legacy := value.NewObject()
	key := message(map[string]value.Value{"id": field(1, tagString)}, "id")
	legacy.Set("MessageKeySpec", key)
	legacy.Set("OtherSpec", message(nil))

	exports := value.NewObject()
	exports.Set("UserSpec", message(map[string]value.Value{"key": field(1, tagMessage, key)}, "key"))

	c := diag.NewCollector(nil)
	files, err := New(dialect.Armadillo(), WithCollector(c)).Extract([]*loader.Module{
		constantsModule(),
		{Name: "WAProtocol.pb", Exports: legacy},
		{Name: "WAUser.pb", Exports: exports},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"WAUser"}, fileNames(files))

	ref := fieldByName(t, files[0].Lookup("User"), "key").Type.Ref
	require.NotNil(t, ref)
	assert.Equal(t, "WACommon.MessageKey", ref.QualifiedName())
	assert.Equal(t, []string{"Legacy module has more than one export"}, warningsFor(c, "WAProtocol.pb"))
}

func TestNestUpper(t *testing.T) {
	var root schema.Scope
	root.AddMessage(schema.NewMessage("P", nil, "Foo"))
	fooBar := root.AddMessage(schema.NewMessage("P", nil, "FooBar"))
	fooBar.AddMessage(schema.NewMessage("P", []string{"FooBar"}, "Baz"))

	tests := []struct {
		name     string
		input    string
		wantPath []string
		wantName string
	}{
		{"longest prefix wins", "FOO_BAR_QUX", []string{"FooBar"}, "Qux"},
		{"descends twice", "FOO_BAR_BAZ_TYPE", []string{"FooBar", "Baz"}, "Type"},
		{"whole name never consumed", "FOO_BAR", []string{"Foo"}, "Bar"},
		{"no match", "OTHER_THING", nil, "OtherThing"},
		{"empty segments skipped", "FOO__X", []string{"Foo"}, "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, path, name := nestUpper(&root, nil, upperParts(tt.input))
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
