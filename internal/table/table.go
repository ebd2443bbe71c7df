package table

import (
	"fmt"
	"time"
)

// Type is the value type shared by every non-null value of a column.
type Type string

const (
	TypeInt       Type = "int"
	TypeFloat     Type = "float"
	TypeText      Type = "text"
	TypeTimestamp Type = "timestamp"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeText, TypeTimestamp:
		return true
	default:
		return false
	}
}

// Column values are int64, float64, string or time.Time according to Type.
// A nil value is null.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

type Table struct {
	Columns []Column
}

// New validates the columns and returns a table holding them.
func New(columns ...Column) (Table, error) {
	seen := make(map[string]struct{}, len(columns))
	for i, column := range columns {
		if !column.Type.Valid() {
			return Table{}, fmt.Errorf("column %q: invalid type %q", column.Name, column.Type)
		}
		if _, ok := seen[column.Name]; ok {
			return Table{}, fmt.Errorf("duplicate column name %q", column.Name)
		}
		seen[column.Name] = struct{}{}
		if i > 0 && len(column.Values) != len(columns[0].Values) {
			return Table{}, fmt.Errorf("column %q has %d rows, want %d", column.Name, len(column.Values), len(columns[0].Values))
		}
		for row, value := range column.Values {
			if err := checkValue(column.Type, value); err != nil {
				return Table{}, fmt.Errorf("column %q row %d: %w", column.Name, row, err)
			}
		}
	}
	return Table{Columns: columns}, nil
}

// MustNew is New for fixtures whose shape is known to be valid.
func MustNew(columns ...Column) Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Table) NumColumns() int {
	return len(t.Columns)
}

func (t Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

func (t Table) Names() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Row returns the values of row i in column order.
func (t Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j, column := range t.Columns {
		row[j] = column.Values[i]
	}
	return row
}

// Equal reports whether a and b have the same column names, types and values.
func Equal(a, b Table) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		left, right := a.Columns[i], b.Columns[i]
		if left.Name != right.Name || left.Type != right.Type || len(left.Values) != len(right.Values) {
			return false
		}
		for row := range left.Values {
			if !equalValue(left.Values[row], right.Values[row]) {
				return false
			}
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func checkValue(typ Type, value any) error {
	if value == nil {
		return nil
	}
	ok := false
	switch typ {
	case TypeInt:
		_, ok = value.(int64)
	case TypeFloat:
		_, ok = value.(float64)
	case TypeText:
		_, ok = value.(string)
	case TypeTimestamp:
		_, ok = value.(time.Time)
	}
	if !ok {
		return fmt.Errorf("value %#v is not %s", value, typ)
	}
	return nil
}
