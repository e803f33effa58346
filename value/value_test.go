package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_KeysOrder(t *testing.T) {
	o := NewObject()
	o.Set("b", Number(1))
	o.Set("10", Number(2))
	o.Set("a", Number(3))
	o.Set("2", Number(4))
	o.Set("b", Number(5))

	assert.Equal(t, []string{"2", "10", "b", "a"}, o.Keys())
	v, ok := o.Get("b")
	require.True(t, ok)
	assert.Equal(t, Number(5), v)
	assert.Equal(t, 4, o.Len())
}

func TestObject_Delete(t *testing.T) {
	o := NewObject()
	o.Set("x", Number(1))
	o.Set("y", Number(2))
	o.Set("z", Number(3))
	o.Delete("y")
	o.Delete("missing")

	assert.Equal(t, []string{"x", "z"}, o.Keys())
	_, ok := o.Get("y")
	assert.False(t, ok)
}

func TestNumber_Int(t *testing.T) {
	tests := []struct {
		in     Number
		want   int
		wantOK bool
	}{
		{3, 3, true},
		{-1, -1, true},
		{1.5, 0, false},
		{Number(math.NaN()), 0, false},
		{Number(math.Inf(1)), 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.in.Int()
		assert.Equal(t, tt.wantOK, ok, "Int(%v)", tt.in)
		assert.Equal(t, tt.want, got, "Int(%v)", tt.in)
	}
}

func TestNumber_Int32(t *testing.T) {
	assert.Equal(t, int32(-1), Number(4294967295).Int32())
	assert.Equal(t, int32(256), Number(256).Int32())
	assert.Equal(t, int32(0), Number(math.NaN()).Int32())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(Undefined{}))
	assert.False(t, Truthy(Null{}))
	assert.False(t, Truthy(Number(0)))
	assert.False(t, Truthy(String("")))
	assert.True(t, Truthy(Number(1)))
	assert.True(t, Truthy(NewObject()))
	assert.True(t, Truthy(&Array{}))
}

func TestMember(t *testing.T) {
	o := NewObject()
	o.Set("k", String("v"))
	arr := &Array{Elems: []Value{Number(1), nil}}

	assert.Equal(t, String("v"), Member(o, "k"))
	assert.Equal(t, Undefined{}, Member(o, "missing"))
	assert.Equal(t, Number(2), Member(arr, "length"))
	assert.Equal(t, Number(1), Member(arr, "0"))
	assert.Equal(t, Undefined{}, Member(arr, "1"))
	assert.Equal(t, Undefined{}, Member(Number(1), "x"))
}

func TestToNumberAndPropertyKey(t *testing.T) {
	assert.Equal(t, Number(12), ToNumber(String(" 12 ")))
	assert.Equal(t, Number(1), ToNumber(Bool(true)))
	assert.True(t, math.IsNaN(float64(ToNumber(Undefined{}))))

	k, ok := PropertyKey(Number(3))
	assert.True(t, ok)
	assert.Equal(t, "3", k)
	_, ok = PropertyKey(NewObject())
	assert.False(t, ok)
}
