package query

import "github.com/selectsql/selectsql/internal/message"

func validateColumns(columns []ColumnDesc) *message.Message {
	if len(columns) == 0 {
		m := message.CommentedQuery()
		return &m
	}
	seen := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		if _, ok := seen[column.Name]; ok {
			m := message.DuplicateColumnName(column.Name)
			return &m
		}
		seen[column.Name] = struct{}{}
	}
	return nil
}
