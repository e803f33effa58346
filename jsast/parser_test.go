package jsast

import (
	"errors"
	"testing"

	"github.com/albertocavalcante/go-protorecon/internal/fixture"
	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContent_FindsDeclarations(t *testing.T) {
	result, err := ParseContent("web.js", []byte(fixture.Web))
	require.NoError(t, err)
	assert.False(t, result.HasErrors())

	var names []string
	for _, d := range result.Declarations {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"WAProtoConst",
		"WAWebUtilsLogger",
		"WAWebProtobufsE2E.pb",
		"WACommon.pb",
		"WAAdv.pb",
		"WAWebProtobufsAdv.pb",
		"WACompanionReg.pb",
		"WAWebProtobufsMdStorageChat.pb",
		"WAEmpty.pb",
	}, names)

	e2e := result.Declarations[2]
	assert.Equal(t, []string{"$InternalEnum", "WACommon.pb", "WAProtoConst"}, e2e.Dependencies)
	assert.Equal(t, "web.js", e2e.Pos.Filename)
	assert.Equal(t, 5, e2e.Pos.Line)
}

func TestParseContent_SyntaxError(t *testing.T) {
	_, err := ParseContent("broken.js", []byte(`__d("A.pb", [], function( {`))
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "broken.js", pe.Pos.Filename)
	assert.Equal(t, 1, pe.Pos.Line)
	assert.NotNil(t, pe.Unwrap())
}

func TestParseContent_MalformedDefinitions(t *testing.T) {
	src := `
__d(name, [], function(){});
__d("B.pb", "x", function(){});
__d("C.pb", []);
__d("D.pb", [], 42);
__d("E.pb", null, function(){});
`
	result, err := ParseContent("odd.js", []byte(src))
	require.NoError(t, err)
	assert.Len(t, result.Warnings, 3)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "odd.js:5:")
	assert.Contains(t, result.Errors[0].Message, "D.pb")

	require.Len(t, result.Declarations, 1)
	assert.Equal(t, "E.pb", result.Declarations[0].Name)
	assert.Empty(t, result.Declarations[0].Dependencies)
}

func loadBundle(t *testing.T, src string, opts ...loader.Option) *loader.Loader {
	t.Helper()
	result, err := ParseContent("bundle.js", []byte(src))
	require.NoError(t, err)
	l := loader.New(opts...)
	require.NoError(t, Register(l, result.Declarations))
	require.NoError(t, l.LoadAll())
	return l
}

func TestFactory_ExportsWithoutDependencies(t *testing.T) {
	l := loadBundle(t, fixture.Web, loader.WithLazy(true))
	m, ok := l.Module("WAProtoConst")
	require.True(t, ok)

	types, ok := value.Member(m.Exports, "TYPES").(*value.Object)
	require.True(t, ok)
	assert.Equal(t, value.Number(18), value.Member(types, "MAP"))
	assert.Equal(t, value.Number(31), value.Member(m.Exports, "TYPE_MASK"))
	assert.Equal(t, value.Number(512), value.Member(value.Member(m.Exports, "FLAGS"), "REPEATED"))
}

func TestFactory_ExportsWithDependencies(t *testing.T) {
	l := loadBundle(t, fixture.Web, loader.WithLazy(true))
	common, ok := l.Module("WACommon.pb")
	require.True(t, ok)
	e2e, ok := l.Module("WAWebProtobufsE2E.pb")
	require.True(t, ok)

	behavior, ok := value.Member(common.Exports, "FutureProofBehavior").(*value.Object)
	require.True(t, ok)
	assert.True(t, behavior.IsEnum())
	assert.Equal(t, []string{"DEFAULT", "DEAD", "KEEP"}, behavior.Keys())

	msg := value.Member(e2e.Exports, "ContextInfoSpec")
	spec, ok := value.Member(msg, "internalSpec").(*value.Object)
	require.True(t, ok)

	key, ok := value.Member(spec, "key").(*value.Array)
	require.True(t, ok)
	assert.Same(t, value.Member(common.Exports, "MessageKeySpec"), key.At(2), "cross-module references keep identity")

	mentioned, ok := value.Member(spec, "mentionedJID").(*value.Array)
	require.True(t, ok)
	assert.Equal(t, value.Number(9|512), mentioned.At(1))

	paired, ok := value.Member(e2e.Exports, "ContextInfo$PairedMediaType").(*value.Object)
	require.True(t, ok)
	assert.Equal(t, value.Number(-1), value.Member(paired, "NOT_PAIRED"))
}

func TestFactory_MissingRequirementIsFatal(t *testing.T) {
	src := `__d("A.pb",["B.pb"],(function(a,b,c,d,e,f,g){g.X=d("Missing.pb").Y}),98);
__d("B.pb",[],(function(a,b,c,d,e,f){e.Z=1}),98);`
	result, err := ParseContent("bundle.js", []byte(src))
	require.NoError(t, err)
	l := loader.New(loader.WithLazy(true))
	require.NoError(t, Register(l, result.Declarations))

	err = l.LoadAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrModuleNotFound)
}

func TestFactory_Expressions(t *testing.T) {
	src := `__d("Expr",[],(function(a,b,c,d,e,f){"use strict";
var x = 1 << 4 | 2, y = ~0, z = -x, s = "a" + 1, t = void 0;
var o = {"quoted": 1, 2: "two", [s]: true};
o.late = x > 0 ? "pos" : "neg";
var n = null ?? "fallback";
if (!t) { e.branch = "taken" } else { e.branch = "skipped" }
e.x = x; e.y = y; e.z = z; e.s = s; e.t = t; e.o = o; e.n = n;
e.u = 5 >>> 1; e.len = [1,2,3].length;
e.m = (1, 2, 3);
x |= 1; e.x2 = x;
delete o.quoted;
return;
e.after = true;
}),66);`
	l := loadBundle(t, src)
	m, ok := l.Module("Expr")
	require.True(t, ok)
	ex := m.Exports

	assert.Equal(t, value.Number(18), value.Member(ex, "x"))
	assert.Equal(t, value.Number(-1), value.Member(ex, "y"))
	assert.Equal(t, value.Number(-18), value.Member(ex, "z"))
	assert.Equal(t, value.String("a1"), value.Member(ex, "s"))
	assert.Equal(t, value.Undefined{}, value.Member(ex, "t"))
	assert.Equal(t, value.String("fallback"), value.Member(ex, "n"))
	assert.Equal(t, value.String("taken"), value.Member(ex, "branch"))
	assert.Equal(t, value.Number(2), value.Member(ex, "u"))
	assert.Equal(t, value.Number(3), value.Member(ex, "len"))
	assert.Equal(t, value.Number(3), value.Member(ex, "m"))
	assert.Equal(t, value.Number(19), value.Member(ex, "x2"))
	assert.Equal(t, value.Undefined{}, value.Member(ex, "after"))

	o, ok := value.Member(ex, "o").(*value.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"2", "a1", "late"}, o.Keys())
	assert.Equal(t, value.String("pos"), value.Member(o, "late"))
}

func TestFactory_UnknownCallsEvaluateToUndefined(t *testing.T) {
	src := `__d("U",[],(function(a,b,c,d,e,f){e.v = someGlobal.method(1); e.w = window.x}),66);`
	l := loadBundle(t, src)
	m, _ := l.Module("U")
	assert.Equal(t, value.Undefined{}, value.Member(m.Exports, "v"))
	assert.Equal(t, value.Undefined{}, value.Member(m.Exports, "w"))
}

func TestParseContent_WrapperForms(t *testing.T) {
	const def = `__d("X.pb",["WAProtoConst"],(function(a,b,c,d,e,f,g){g.ASpec={}}),98)`
	tests := []struct {
		name string
		src  string
	}{
		{"bare", def + ";"},
		{"iife", "(function(){" + def + "})();"},
		{"negated iife", "!function(){" + def + "}();"},
		{"call this", "(function(){" + def + "}).call(this);"},
		{"apply", "(function(){" + def + "}).apply(this, []);"},
		{"self member", `self.` + def + ";"},
		{"window member", `window.` + def + ";"},
		{"bracket member", `window["__d"]` + def[len(DefineFunc):] + ";"},
		{"arrow", "(() => { " + def + " })();"},
		{"new", "new Promise(function(){" + def + "});"},
		{"array element", "var q = [function(){" + def + "}];"},
		{"object value", "var o = {init: function(){" + def + "}};"},
		{"guarded", "typeof __d === 'function' && " + def + ";"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseContent("wrap.js", []byte(tt.src))
			require.NoError(t, err)
			require.Len(t, result.Declarations, 1)
			assert.Equal(t, "X.pb", result.Declarations[0].Name)
			assert.Equal(t, []string{"WAProtoConst"}, result.Declarations[0].Dependencies)
			assert.Empty(t, result.Warnings)
		})
	}
}

func TestParseContent_NoDefinitions(t *testing.T) {
	result, err := ParseContent("other.js", []byte(`var x = 1; console.log(x);`))
	require.NoError(t, err)
	assert.Empty(t, result.Declarations)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "no __d module definitions found")

	result, err = ParseContent("empty.js", []byte("\n"))
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}
