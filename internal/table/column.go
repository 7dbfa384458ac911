package table

import (
	"fmt"
	"slices"
)

// Column is a homogeneous sequence of one scalar kind. Only the slice matching
// typ is ever populated.
type Column struct {
	typ     ScalarType
	ints    []int64
	floats  []float64
	strings []string
	bools   []bool
}

// The constructors copy their arguments.
func IntColumn(v ...int64) Column     { return Column{typ: Int, ints: slices.Clone(v)} }
func FloatColumn(v ...float64) Column { return Column{typ: Float, floats: slices.Clone(v)} }
func StringColumn(v ...string) Column { return Column{typ: String, strings: slices.Clone(v)} }
func BoolColumn(v ...bool) Column     { return Column{typ: Bool, bools: slices.Clone(v)} }

func emptyColumn(t ScalarType) Column { return Column{typ: t} }

func (c Column) Type() ScalarType { return c.typ }

// The typed accessors return copies; a decoded table is not changed through them.
func (c Column) Ints() []int64     { return slices.Clone(c.ints) }
func (c Column) Floats() []float64 { return slices.Clone(c.floats) }
func (c Column) Strings() []string { return slices.Clone(c.strings) }
func (c Column) Bools() []bool     { return slices.Clone(c.bools) }

func (c Column) String() string { return fmt.Sprintf("%s%v", c.typ, c.Values()) }

func (c Column) Len() int {
	switch c.typ {
	case Int:
		return len(c.ints)
	case Float:
		return len(c.floats)
	case String:
		return len(c.strings)
	case Bool:
		return len(c.bools)
	}
	return 0
}

// Value returns row i boxed as int64, float64, string or bool.
func (c Column) Value(i int) any {
	switch c.typ {
	case Int:
		return c.ints[i]
	case Float:
		return c.floats[i]
	case String:
		return c.strings[i]
	case Bool:
		return c.bools[i]
	}
	return nil
}

// Values returns the column boxed, in order.
func (c Column) Values() []any {
	out := make([]any, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}

// append adds v, which the caller has already matched against c.typ.
func (c *Column) append(v any) {
	switch c.typ {
	case Int:
		c.ints = append(c.ints, toInt64(v))
	case Float:
		c.floats = append(c.floats, toFloat64(v))
	case String:
		c.strings = append(c.strings, v.(string))
	case Bool:
		c.bools = append(c.bools, v.(bool))
	}
}

// columnOf builds a typed column from boxed values, failing on the first value
// whose Go type does not belong to t.
func columnOf(values []any, t ScalarType) (Column, bool) {
	col := emptyColumn(t)
	for _, v := range values {
		vt, ok := typeOf(v)
		if !ok || vt != t {
			return Column{}, false
		}
		col.append(v)
	}
	return col, true
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	}
	return 0
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return 0
}
