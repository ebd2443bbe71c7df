// Package tablefile reads and writes tables as flat Parquet files.
package tablefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/selectsql/selectsql/internal/table"
)

// ColumnOrderKey is the key/value metadata entry holding the JSON list of
// column names. Parquet groups sort their fields by name, so the order of the
// table is kept here.
const ColumnOrderKey = "selectsql.columns"

const readBatchSize = 512

var ErrNoColumns = errors.New("table has no columns")

// Read decodes a flat Parquet file into a table.
func Read(r io.ReaderAt, size int64) (table.Table, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return table.Table{}, fmt.Errorf("open parquet file: %w", err)
	}

	fields := file.Schema().Fields()
	columns := make([]table.Column, len(fields))
	decoders := make([]func(parquet.Value) any, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return table.Table{}, fmt.Errorf("column %q: nested columns are not supported", field.Name())
		}
		typ, decode, err := columnType(field.Type())
		if err != nil {
			return table.Table{}, fmt.Errorf("column %q: %w", field.Name(), err)
		}
		columns[i] = table.Column{Name: field.Name(), Type: typ, Values: make([]any, 0, file.NumRows())}
		decoders[i] = decode
	}

	for _, rowGroup := range file.RowGroups() {
		if err := readRowGroup(rowGroup, columns, decoders); err != nil {
			return table.Table{}, err
		}
	}

	if raw, ok := file.Lookup(ColumnOrderKey); ok {
		columns = reorder(columns, raw)
	}
	out, err := table.New(columns...)
	if err != nil {
		return table.Table{}, fmt.Errorf("decode parquet table: %w", err)
	}
	return out, nil
}

func readRowGroup(rowGroup parquet.RowGroup, columns []table.Column, decoders []func(parquet.Value) any) error {
	rows := rowGroup.Rows()
	defer func() { _ = rows.Close() }()

	buf := make([]parquet.Row, readBatchSize)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, value := range row {
				i := value.Column()
				if value.IsNull() {
					columns[i].Values = append(columns[i].Values, nil)
					continue
				}
				columns[i].Values = append(columns[i].Values, decoders[i](value))
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read parquet rows: %w", err)
		}
	}
}

func columnType(typ parquet.Type) (table.Type, func(parquet.Value) any, error) {
	logical := typ.LogicalType()
	switch typ.Kind() {
	case parquet.Boolean:
		return table.TypeInt, func(v parquet.Value) any {
			if v.Boolean() {
				return int64(1)
			}
			return int64(0)
		}, nil
	case parquet.Int32:
		if logical != nil && logical.Date != nil {
			return table.TypeTimestamp, func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}, nil
		}
		return table.TypeInt, func(v parquet.Value) any { return int64(v.Int32()) }, nil
	case parquet.Int64:
		if logical != nil && logical.Timestamp != nil {
			scale := timestampScale(logical.Timestamp.Unit)
			return table.TypeTimestamp, func(v parquet.Value) any {
				return time.Unix(0, v.Int64()*scale).UTC()
			}, nil
		}
		return table.TypeInt, func(v parquet.Value) any { return v.Int64() }, nil
	case parquet.Float:
		return table.TypeFloat, func(v parquet.Value) any { return float64(v.Float()) }, nil
	case parquet.Double:
		return table.TypeFloat, func(v parquet.Value) any { return v.Double() }, nil
	case parquet.ByteArray:
		return table.TypeText, func(v parquet.Value) any { return string(v.ByteArray()) }, nil
	default:
		return "", nil, fmt.Errorf("unsupported parquet type %s", typ)
	}
}

func timestampScale(unit format.TimeUnit) int64 {
	switch {
	case unit.Millis != nil:
		return int64(time.Millisecond)
	case unit.Micros != nil:
		return int64(time.Microsecond)
	default:
		return 1
	}
}

// reorder applies the recorded column order when it names exactly the
// columns of the file.
func reorder(columns []table.Column, raw string) []table.Column {
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil || len(names) != len(columns) {
		return columns
	}
	byName := make(map[string]table.Column, len(columns))
	for _, column := range columns {
		byName[column.Name] = column
	}
	ordered := make([]table.Column, 0, len(names))
	for _, name := range names {
		column, ok := byName[name]
		if !ok {
			return columns
		}
		ordered = append(ordered, column)
		delete(byName, name)
	}
	return ordered
}

// Write encodes t as a Parquet file with one optional leaf per column.
func Write(w io.Writer, t table.Table) error {
	if t.NumColumns() == 0 {
		return ErrNoColumns
	}

	group := parquet.Group{}
	for _, column := range t.Columns {
		group[column.Name] = parquet.Optional(leafNode(column.Type))
	}
	schema := parquet.NewSchema("selectsql", group)

	order, err := json.Marshal(t.Names())
	if err != nil {
		return fmt.Errorf("encode column order: %w", err)
	}

	// Leaf indexes follow the schema's sorted field order.
	leafIndex := make(map[string]int, len(t.Columns))
	for i, field := range schema.Fields() {
		leafIndex[field.Name()] = i
	}

	writer := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(ColumnOrderKey, string(order)))
	rows := make([]parquet.Row, 0, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		row := make(parquet.Row, len(t.Columns))
		for _, column := range t.Columns {
			idx := leafIndex[column.Name]
			row[idx] = encodeValue(column.Type, column.Values[r], idx)
		}
		rows = append(rows, row)
	}
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func leafNode(typ table.Type) parquet.Node {
	switch typ {
	case table.TypeInt:
		return parquet.Leaf(parquet.Int64Type)
	case table.TypeFloat:
		return parquet.Leaf(parquet.DoubleType)
	case table.TypeTimestamp:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.String()
	}
}

func encodeValue(typ table.Type, value any, columnIndex int) parquet.Value {
	if value == nil {
		return parquet.NullValue().Level(0, 0, columnIndex)
	}
	var v parquet.Value
	switch typ {
	case table.TypeInt:
		v = parquet.Int64Value(value.(int64))
	case table.TypeFloat:
		v = parquet.DoubleValue(value.(float64))
	case table.TypeTimestamp:
		v = parquet.Int64Value(value.(time.Time).UnixNano())
	default:
		v = parquet.ByteArrayValue([]byte(value.(string)))
	}
	return v.Level(0, 1, columnIndex)
}
