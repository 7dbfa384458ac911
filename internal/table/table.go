package table

import "fmt"

// Table is an ordered set of typed columns. columns and types always have the
// same length.
type Table struct {
	columns []Column
	types   []ScalarType
}

// NewTable returns an empty table with one zero-length column per type.
func NewTable(types ...ScalarType) *Table {
	t := &Table{
		columns: make([]Column, 0, len(types)),
		types:   make([]ScalarType, 0, len(types)),
	}
	for _, typ := range types {
		t.columns = append(t.columns, emptyColumn(typ))
		t.types = append(t.types, typ)
	}
	return t
}

func (t *Table) NumColumns() int { return len(t.columns) }

// Column returns column i. Its accessors copy, so the table cannot be modified
// through it. It panics if i is out of range.
func (t *Table) Column(i int) Column { return t.columns[i] }

// Types returns a copy of the declared column types.
func (t *Table) Types() []ScalarType {
	out := make([]ScalarType, len(t.types))
	copy(out, t.types)
	return out
}

// NumRows is the length of the first column, or 0 for a table without columns.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// Row returns row i across all columns.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.columns))
	for c := range t.columns {
		out[c] = t.columns[c].Value(i)
	}
	return out
}

// CheckRows reports ErrRaggedTable when columns disagree on the row count.
func (t *Table) CheckRows() error {
	n := t.NumRows()
	for i, c := range t.columns {
		if c.Len() != n {
			return fmt.Errorf("%w: column %d has %d rows, column 0 has %d", ErrRaggedTable, i, c.Len(), n)
		}
	}
	return nil
}

// AddRow appends one value to every column. Every value is checked before any
// column is touched, so a rejected row leaves the table unchanged.
func (t *Table) AddRow(values []any) error {
	if len(values) != len(t.types) {
		return fmt.Errorf("%w: got %d values, table has %d columns", ErrRowLengthMismatch, len(values), len(t.types))
	}
	for i, v := range values {
		vt, ok := typeOf(v)
		if !ok || vt != t.types[i] {
			return fmt.Errorf("%w: column %d is %s, got %T", ErrRowTypeMismatch, i, t.types[i], v)
		}
	}
	for i, v := range values {
		t.columns[i].append(v)
	}
	return nil
}

// AddColumn appends a column after checking every value against typ.
func (t *Table) AddColumn(values []any, typ ScalarType) error {
	if !typ.valid() {
		return &UnknownColumnTypeError{Tag: typ.String()}
	}
	col, ok := columnOf(values, typ)
	if !ok {
		return fmt.Errorf("%w: expected %s", ErrColumnTypeMismatch, typ)
	}
	t.columns = append(t.columns, col)
	t.types = append(t.types, typ)
	return nil
}

// AddColumnUnchecked appends col as is. The column's type is trusted; decode
// uses it once the wire tag has fixed the type.
func (t *Table) AddColumnUnchecked(col Column) {
	t.columns = append(t.columns, col)
	t.types = append(t.types, col.typ)
}
