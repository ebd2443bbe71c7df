package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type wireTable struct {
	Columns []wireColumn `json:"columns"`
}

type wireColumn struct {
	Name   string            `json:"name"`
	Type   Type              `json:"type"`
	Values []json.RawMessage `json:"values"`
}

// MarshalJSON encodes timestamps as RFC 3339 strings with nanoseconds.
func (t Table) MarshalJSON() ([]byte, error) {
	out := wireTable{Columns: make([]wireColumn, 0, len(t.Columns))}
	for _, column := range t.Columns {
		wire := wireColumn{Name: column.Name, Type: column.Type, Values: make([]json.RawMessage, 0, len(column.Values))}
		for _, value := range column.Values {
			if ts, ok := value.(time.Time); ok {
				value = ts.UTC().Format(time.RFC3339Nano)
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("encode column %q: %w", column.Name, err)
			}
			wire.Values = append(wire.Values, encoded)
		}
		out.Columns = append(out.Columns, wire)
	}
	return json.Marshal(out)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var in wireTable
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	columns := make([]Column, 0, len(in.Columns))
	for _, wire := range in.Columns {
		column := Column{Name: wire.Name, Type: wire.Type, Values: make([]any, 0, len(wire.Values))}
		for row, raw := range wire.Values {
			value, err := decodeValue(wire.Type, raw)
			if err != nil {
				return fmt.Errorf("column %q row %d: %w", wire.Name, row, err)
			}
			column.Values = append(column.Values, value)
		}
		columns = append(columns, column)
	}
	decoded, err := New(columns...)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

func decodeValue(typ Type, raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	switch typ {
	case TypeInt:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeFloat:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeText:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeTimestamp:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	default:
		return nil, fmt.Errorf("invalid type %q", typ)
	}
}
