package table

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire layout of a table:
//
//	[ [ {"Int": [1, 2]}, {"String": ["a", "b"]} ], ["Int", "String"] ]
//
// The first element holds one single-key map per column, keyed by the type tag.
// The second lists the tags in column order.

// EncodeTable builds the wire structure for t.
func EncodeTable(t *Table) []any {
	payloads := make([]any, len(t.columns))
	tags := make([]any, len(t.types))
	for i, c := range t.columns {
		var values any
		switch c.typ {
		case Int:
			values = nonNil(c.ints)
		case Float:
			values = nonNil(c.floats)
		case String:
			values = nonNil(c.strings)
		case Bool:
			values = nonNil(c.bools)
		}
		payloads[i] = map[string]any{c.typ.String(): values}
		tags[i] = t.types[i].String()
	}
	return []any{payloads, tags}
}

// DecodeTable validates a decoded wire structure and materializes a Table.
// No partial table is returned on error. Row counts are not compared across
// columns; see CheckRows.
func DecodeTable(wire any) (*Table, error) {
	top, ok := wire.([]any)
	if !ok || len(top) != 2 {
		return nil, fmt.Errorf("%w: expected a 2-element array, got %T", ErrProtocolMismatch, wire)
	}
	payloads, ok := top[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: column payloads are %T, not an array", ErrProtocolMismatch, top[0])
	}
	tags, ok := top[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: type tags are %T, not an array", ErrProtocolMismatch, top[1])
	}
	if len(payloads) != len(tags) {
		return nil, fmt.Errorf("%w: %d column payloads, %d type tags", ErrProtocolMismatch, len(payloads), len(tags))
	}

	t := &Table{
		columns: make([]Column, 0, len(tags)),
		types:   make([]ScalarType, 0, len(tags)),
	}
	for i, raw := range tags {
		tag, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: type tag %d is %T, not a string", ErrProtocolMismatch, i, raw)
		}
		typ, err := ParseScalarType(tag)
		if err != nil {
			return nil, err
		}
		values, err := lookupColumn(payloads[i], tag)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		col, err := decodeColumn(values, typ)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		t.AddColumnUnchecked(col)
	}
	return t, nil
}

// Marshal serializes t as a MessagePack payload.
func Marshal(t *Table) ([]byte, error) {
	b, err := msgpack.Marshal(EncodeTable(t))
	if err != nil {
		return nil, fmt.Errorf("table: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a MessagePack payload into a validated Table.
func Unmarshal(b []byte) (*Table, error) {
	wire, err := DecodePayload(b)
	if err != nil {
		return nil, err
	}
	return DecodeTable(wire)
}

func lookupColumn(payload any, tag string) ([]any, error) {
	var (
		raw   any
		found bool
		size  int
	)
	switch m := payload.(type) {
	case map[string]any:
		raw, found = m[tag]
		size = len(m)
	case map[any]any:
		raw, found = m[tag]
		size = len(m)
	default:
		return nil, fmt.Errorf("%w: column payload is %T, not a map", ErrProtocolMismatch, payload)
	}
	if !found {
		return nil, fmt.Errorf("%w: key %q missing from column payload", ErrProtocolMismatch, tag)
	}
	if size != 1 {
		return nil, fmt.Errorf("%w: column payload has %d keys, expected 1", ErrProtocolMismatch, size)
	}
	values, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s values are %T, not an array", ErrProtocolMismatch, tag, raw)
	}
	return values, nil
}

// decodeColumn converts wire values into a typed column. MessagePack keeps the
// smallest encoding for a number, so any integer width is accepted for Int and
// both float widths for Float.
func decodeColumn(values []any, typ ScalarType) (Column, error) {
	col := emptyColumn(typ)
	for j, v := range values {
		ok := true
		switch typ {
		case Int:
			var x int64
			x, ok = wireInt(v)
			col.ints = append(col.ints, x)
		case Float:
			var x float64
			x, ok = wireFloat(v)
			col.floats = append(col.floats, x)
		case String:
			var x string
			x, ok = v.(string)
			ok = ok && utf8.ValidString(x)
			col.strings = append(col.strings, x)
		case Bool:
			var x bool
			x, ok = v.(bool)
			col.bools = append(col.bools, x)
		}
		if !ok {
			return Column{}, fmt.Errorf("%w: value %d of %s column is %T", ErrProtocolMismatch, j, typ, v)
		}
	}
	return col, nil
}

func wireInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int8, int16, int32, int:
		return toInt64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func wireFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

// nonNil keeps empty columns encoded as [] rather than nil.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
