package extract

import (
	"fmt"

	"github.com/albertocavalcante/go-protorecon/schema"
	"github.com/albertocavalcante/go-protorecon/value"
)

// Constants is the type and flag table exported by the constants module.
type Constants struct {
	tags     map[int]schema.Scalar
	TypeMask int
	Packed   int
	Repeated int
	Required int
}

// Decoded is a field's flag word split into its parts.
type Decoded struct {
	Tag      int
	Scalar   schema.Scalar
	Repeated bool
	Packed   bool
	Required bool
}

// ReadConstants reads TYPES, TYPE_MASK and FLAGS from the exports of the
// constants module.
func ReadConstants(exports *value.Object) (*Constants, error) {
	types, ok := value.Member(exports, "TYPES").(*value.Object)
	if !ok {
		return nil, fmt.Errorf("%w: no TYPES table", ErrConstantsMissing)
	}
	c := &Constants{tags: make(map[int]schema.Scalar)}
	for _, name := range types.Keys() {
		v, _ := types.Get(name)
		n, ok := v.(value.Number)
		if !ok {
			continue
		}
		tag, ok := n.Int()
		if !ok {
			continue
		}
		if s := schema.ScalarByName(name); s != schema.ScalarInvalid {
			c.tags[tag] = s
		}
	}
	if len(c.tags) == 0 {
		return nil, fmt.Errorf("%w: TYPES table is empty", ErrConstantsMissing)
	}

	mask, err := intExport(exports, "TYPE_MASK")
	if err != nil {
		return nil, err
	}
	c.TypeMask = mask

	flags, ok := value.Member(exports, "FLAGS").(*value.Object)
	if !ok {
		return nil, fmt.Errorf("%w: no FLAGS table", ErrConstantsMissing)
	}
	for name, dst := range map[string]*int{"PACKED": &c.Packed, "REPEATED": &c.Repeated, "REQUIRED": &c.Required} {
		if *dst, err = intExport(flags, name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func intExport(obj *value.Object, name string) (int, error) {
	n, ok := value.Member(obj, name).(value.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrConstantsMissing, name)
	}
	i, ok := n.Int()
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrConstantsMissing, name)
	}
	return i, nil
}

// Scalar maps a bare type tag, as used for map keys and values.
func (c *Constants) Scalar(tag int) schema.Scalar {
	return c.tags[tag]
}

// Decode splits a field flag word.
func (c *Constants) Decode(flags int) Decoded {
	tag := flags & c.TypeMask
	return Decoded{
		Tag:      tag,
		Scalar:   c.tags[tag],
		Repeated: flags&c.Repeated != 0,
		Packed:   flags&c.Packed != 0,
		Required: flags&c.Required != 0,
	}
}
