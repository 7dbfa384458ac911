package table

import (
	"errors"
	"fmt"
)

// ScalarType is the declared kind of every value in a column.
type ScalarType uint8

const (
	Int ScalarType = iota
	Float
	String
	Bool
)

var (
	ErrProtocolMismatch   = errors.New("table: wire structure does not match table shape")
	ErrUnknownColumnType  = errors.New("table: unknown column type")
	ErrRowLengthMismatch  = errors.New("table: row length does not match column count")
	ErrRowTypeMismatch    = errors.New("table: row value type does not match column type")
	ErrColumnTypeMismatch = errors.New("table: column value type does not match column type")
	ErrRaggedTable        = errors.New("table: columns have different row counts")
)

// UnknownColumnTypeError carries the offending tag. It matches ErrUnknownColumnType.
type UnknownColumnTypeError struct {
	Tag string
}

func (e *UnknownColumnTypeError) Error() string {
	return fmt.Sprintf("table: unknown column type %q", e.Tag)
}

func (e *UnknownColumnTypeError) Is(target error) bool {
	return target == ErrUnknownColumnType
}

// String returns the wire tag.
func (t ScalarType) String() string {
	switch t {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case Bool:
		return "Bool"
	default:
		return fmt.Sprintf("ScalarType(%d)", uint8(t))
	}
}

func (t ScalarType) valid() bool { return t <= Bool }

// ParseScalarType maps a wire tag onto the closed set of column types.
func ParseScalarType(tag string) (ScalarType, error) {
	switch tag {
	case "Int":
		return Int, nil
	case "Float":
		return Float, nil
	case "String":
		return String, nil
	case "Bool":
		return Bool, nil
	default:
		return 0, &UnknownColumnTypeError{Tag: tag}
	}
}

// typeOf reports which ScalarType a Go value belongs to.
// Signed integers are Int, floats are Float. Unsigned integers are rejected so
// that nothing above MaxInt64 slips into an Int column.
func typeOf(v any) (ScalarType, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64:
		return Int, true
	case float32, float64:
		return Float, true
	case string:
		return String, true
	case bool:
		return Bool, true
	default:
		return 0, false
	}
}
