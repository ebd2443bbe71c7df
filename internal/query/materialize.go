package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/selectsql/selectsql/internal/table"
)

// materialize builds the output table from a fully fetched result whose
// column names were already validated.
func materialize(result ResultSet) table.Table {
	columns := make([]table.Column, 0, len(result.Columns))
	for i, desc := range result.Columns {
		values := make([]any, len(result.Rows))
		for r, row := range result.Rows {
			values[r] = normalizeValue(row[i])
		}
		typ := resolveType(desc.Type, values)
		columns = append(columns, table.Column{
			Name:   desc.Name,
			Type:   typ,
			Values: coerceValues(typ, values),
		})
	}
	return table.Table{Columns: columns}
}

func resolveType(declared table.Type, values []any) table.Type {
	kinds := map[table.Type]struct{}{}
	for _, value := range values {
		if value == nil {
			continue
		}
		kinds[kindOf(value)] = struct{}{}
	}
	_, hasInt := kinds[table.TypeInt]
	_, hasFloat := kinds[table.TypeFloat]

	if declared.Valid() && conformsTo(declared, kinds) {
		return declared
	}

	switch {
	case len(kinds) == 0:
		return table.TypeText
	case len(kinds) == 1:
		for kind := range kinds {
			return kind
		}
	case len(kinds) == 2 && hasInt && hasFloat:
		return table.TypeFloat
	}
	return table.TypeText
}

func conformsTo(declared table.Type, kinds map[table.Type]struct{}) bool {
	for kind := range kinds {
		if kind == declared {
			continue
		}
		if declared == table.TypeFloat && kind == table.TypeInt {
			continue
		}
		return false
	}
	return true
}

func coerceValues(typ table.Type, values []any) []any {
	for i, value := range values {
		if value == nil {
			continue
		}
		switch typ {
		case table.TypeFloat:
			if v, ok := value.(int64); ok {
				values[i] = float64(v)
			}
		case table.TypeText:
			if _, ok := value.(string); !ok {
				values[i] = formatValue(value)
			}
		}
	}
	return values
}

func kindOf(value any) table.Type {
	switch value.(type) {
	case int64:
		return table.TypeInt
	case float64:
		return table.TypeFloat
	case time.Time:
		return table.TypeTimestamp
	default:
		return table.TypeText
	}
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case int64, float64, string:
		return typed
	case time.Time:
		return typed.UTC()
	case []byte:
		return string(typed)
	case bool:
		if typed {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case float32:
		return float64(typed)
	default:
		return fmt.Sprint(typed)
	}
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(typed)
	}
}
