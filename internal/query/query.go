package query

import (
	"context"
	"fmt"

	"github.com/selectsql/selectsql/internal/message"
	"github.com/selectsql/selectsql/internal/query/sqltext"
	"github.com/selectsql/selectsql/internal/table"
)

// InputTableName is the only relation a store holds.
const InputTableName = "input"

// ColumnDesc describes one result column. Type is empty when the binding could
// not map the engine's declared type.
type ColumnDesc struct {
	Name         string
	DatabaseType string
	Type         table.Type
}

// ResultSet is a fully fetched result. Columns is nil when the statement
// produced no result set.
type ResultSet struct {
	Columns []ColumnDesc
	Rows    [][]any
}

// Store is an ephemeral relational store holding a single loaded table.
type Store interface {
	Query(ctx context.Context, sqlText string) (ResultSet, error)
	Close() error
}

// Engine creates stores. Each Load returns a fresh store that shares nothing
// with any other.
type Engine interface {
	Name() string
	Load(ctx context.Context, name string, input table.Table) (Store, error)
}

type FailureCategory string

const (
	CategoryDatabase          FailureCategory = "database"
	CategoryTooManyStatements FailureCategory = "too_many_statements"
)

// EngineError is a statement failure reported by a store. Text is the engine's
// own message without driver decoration.
type EngineError struct {
	Category FailureCategory
	Text     string
	Err      error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Text)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Outcome holds either a table or the messages explaining why there is none.
type Outcome struct {
	Table    *table.Table
	Messages []message.Message
}

func (o Outcome) Success() bool {
	return o.Table != nil
}

func success(t table.Table) Outcome {
	return Outcome{Table: &t, Messages: []message.Message{}}
}

func failure(messages ...message.Message) Outcome {
	return Outcome{Messages: messages}
}

// CheckStatementCount enforces the one-statement-per-call rule shared by all
// bindings. empty reports text holding no statement at all.
func CheckStatementCount(sqlText string) (empty bool, err error) {
	switch n := sqltext.Count(sqlText); {
	case n == 0:
		return true, nil
	case n > 1:
		return false, TooManyStatements(n)
	default:
		return false, nil
	}
}

// TooManyStatements reports text holding n statements. Bindings whose own
// parser finds extra statements pass the best count they have, at least 2.
func TooManyStatements(n int) *EngineError {
	return &EngineError{
		Category: CategoryTooManyStatements,
		Text:     fmt.Sprintf("You can only execute one statement at a time (got %d).", max(n, 2)),
	}
}
