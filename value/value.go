// Package value models the JavaScript values a module factory can produce
// under static evaluation.
//
// Only the shapes that protobuf schema modules actually use are represented:
// primitives, ordered objects, arrays and native functions supplied by the
// loader. Objects are compared by identity; the extractor relies on pointer
// equality to resolve field type references across modules.
package value

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is any value produced by evaluation.
type Value interface {
	isValue()
}

// Undefined is the JavaScript undefined value.
type Undefined struct{}

// Null is the JavaScript null value.
type Null struct{}

// Bool is a JavaScript boolean.
type Bool bool

// Number is a JavaScript number.
type Number float64

// String is a JavaScript string.
type String string

// Func is a native function exposed to evaluated code, such as the
// require callbacks or the enum constructor.
type Func func(args []Value) (Value, error)

func (Undefined) isValue() {}
func (Null) isValue()      {}
func (Bool) isValue()      {}
func (Number) isValue()    {}
func (String) isValue()    {}
func (Func) isValue()      {}
func (*Object) isValue()   {}
func (*Array) isValue()    {}

// Int returns n as an integer if it has no fractional part.
func (n Number) Int() (int, bool) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Int32 applies the ToInt32 conversion used by bitwise operators.
func (n Number) Int32() int32 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(f))))
}

// Object is an ordered property bag with identity.
type Object struct {
	keys  []string
	props map[string]Value
	enum  bool
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{props: make(map[string]Value)}
}

// Get returns the property named key.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.props[key]
	return v, ok
}

// Set assigns a property, appending key to the insertion order if new.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Delete removes a property.
func (o *Object) Delete(key string) {
	if _, ok := o.props[key]; !ok {
		return
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of properties.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns property names in JavaScript enumeration order: array-index
// keys ascending, then the remaining keys in insertion order.
func (o *Object) Keys() []string {
	var indices, named []string
	for _, k := range o.keys {
		if isArrayIndex(k) {
			indices = append(indices, k)
		} else {
			named = append(named, k)
		}
	}
	if len(indices) == 0 {
		return named
	}
	sort.Slice(indices, func(i, j int) bool {
		a, _ := strconv.ParseUint(indices[i], 10, 32)
		b, _ := strconv.ParseUint(indices[j], 10, 32)
		return a < b
	})
	return append(indices, named...)
}

// MarkEnum flags the object as produced by the enum constructor.
func (o *Object) MarkEnum() {
	o.enum = true
}

// IsEnum reports whether MarkEnum was called.
func (o *Object) IsEnum() bool {
	return o.enum
}

// Array is a JavaScript array.
type Array struct {
	Elems []Value
}

// At returns element i, or Undefined when out of range.
func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.Elems) {
		return Undefined{}
	}
	if a.Elems[i] == nil {
		return Undefined{}
	}
	return a.Elems[i]
}

func isArrayIndex(k string) bool {
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return false
	}
	n, err := strconv.ParseUint(k, 10, 32)
	return err == nil && n < math.MaxUint32
}

// Truthy implements JavaScript ToBoolean.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Undefined, Null:
		return false
	case Bool:
		return bool(x)
	case Number:
		f := float64(x)
		return f != 0 && !math.IsNaN(f)
	case String:
		return x != ""
	default:
		return true
	}
}

// ToNumber implements the subset of JavaScript ToNumber needed for
// constant folding.
func ToNumber(v Value) Number {
	switch x := v.(type) {
	case Number:
		return x
	case Bool:
		if x {
			return 1
		}
		return 0
	case Null:
		return 0
	case String:
		s := strings.TrimSpace(string(x))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number(math.NaN())
		}
		return Number(f)
	default:
		return Number(math.NaN())
	}
}

// PropertyKey converts a value used as a computed member key.
func PropertyKey(v Value) (string, bool) {
	switch x := v.(type) {
	case String:
		return string(x), true
	case Number:
		if i, ok := x.Int(); ok {
			return strconv.Itoa(i), true
		}
		return strconv.FormatFloat(float64(x), 'g', -1, 64), true
	case Bool:
		return strconv.FormatBool(bool(x)), true
	default:
		return "", false
	}
}

// Member reads a property from any value, returning Undefined when the base
// has no such property.
func Member(base Value, key string) Value {
	switch b := base.(type) {
	case *Object:
		if v, ok := b.Get(key); ok && v != nil {
			return v
		}
	case *Array:
		if key == "length" {
			return Number(len(b.Elems))
		}
		if i, err := strconv.Atoi(key); err == nil {
			return b.At(i)
		}
	case String:
		if key == "length" {
			return Number(len(b))
		}
	}
	return Undefined{}
}
