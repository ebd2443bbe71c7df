package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	duckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/selectsql/selectsql/internal/query"
	"github.com/selectsql/selectsql/internal/query/sqltext"
	"github.com/selectsql/selectsql/internal/table"
)

// Engine loads tables into private in-memory DuckDB databases.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return "duckdb"
}

func (e *Engine) Load(ctx context.Context, name string, input table.Table) (query.Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb connection: %w", err)
	}

	s := &store{db: db, conn: conn}
	if err := s.load(ctx, name, input); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

type store struct {
	db   *sql.DB
	conn *sql.Conn
}

func (s *store) load(ctx context.Context, name string, input table.Table) error {
	definitions := make([]string, 0, input.NumColumns())
	placeholders := make([]string, 0, input.NumColumns())
	for _, column := range input.Columns {
		definitions = append(definitions, quoteIdent(column.Name)+" "+declaredType(column.Type))
		placeholders = append(placeholders, "?")
	}

	createSQL := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(name), strings.Join(definitions, ", "))
	if _, err := s.conn.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %q: %w", name, err)
	}
	if input.NumRows() == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertSQL := fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, quoteIdent(name), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < input.NumRows(); i++ {
		row := input.Row(i)
		for j, value := range row {
			if ts, ok := value.(time.Time); ok {
				row[j] = ts.UTC()
			}
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load tx: %w", err)
	}
	return nil
}

func (s *store) Query(ctx context.Context, sqlText string) (query.ResultSet, error) {
	empty, err := query.CheckStatementCount(sqlText)
	if err != nil {
		return query.ResultSet{}, err
	}
	if empty {
		return query.ResultSet{}, nil
	}
	if parsedEmpty, err := s.checkParsed(sqlText); err != nil || parsedEmpty {
		return query.ResultSet{}, err
	}

	rows, err := s.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return query.ResultSet{}, engineError(err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return query.ResultSet{}, fmt.Errorf("query columns: %w", err)
	}
	if len(columnTypes) == 0 {
		return query.ResultSet{}, nil
	}

	columns := make([]query.ColumnDesc, 0, len(columnTypes))
	for _, columnType := range columnTypes {
		databaseType := strings.ToUpper(columnType.DatabaseTypeName())
		columns = append(columns, query.ColumnDesc{
			Name:         columnType.Name(),
			DatabaseType: databaseType,
			Type:         mapDatabaseType(databaseType),
		})
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.ResultSet{}, engineError(err)
	}

	return query.ResultSet{Columns: columns, Rows: resultRows}, nil
}

// checkParsed runs the text through DuckDB's parser without executing it.
// Prepare without a context refuses anything other than exactly one statement,
// catching dialect forms the text scanner counts differently.
func (s *store) checkParsed(sqlText string) (empty bool, err error) {
	err = s.conn.Raw(func(driverConn any) error {
		conn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("unexpected duckdb driver connection %T", driverConn)
		}
		stmt, err := conn.Prepare(sqlText)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
	if err == nil {
		return false, nil
	}
	var duckErr *duckdb.Error
	switch {
	case errors.As(err, &duckErr):
		return false, engineError(err)
	case strings.Contains(err.Error(), "multi-statement"):
		return false, query.TooManyStatements(sqltext.Count(sqlText))
	case err.Error() == "empty query":
		return true, nil
	default:
		return false, fmt.Errorf("parse query: %w", err)
	}
}

func (s *store) Close() error {
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func engineError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	text := err.Error()
	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		text = duckErr.Msg
	}
	return &query.EngineError{Category: query.CategoryDatabase, Text: text, Err: err}
}

func declaredType(typ table.Type) string {
	switch typ {
	case table.TypeInt:
		return "BIGINT"
	case table.TypeFloat:
		return "DOUBLE"
	case table.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func mapDatabaseType(databaseType string) table.Type {
	switch databaseType {
	case "BIGINT", "INTEGER", "SMALLINT", "TINYINT", "HUGEINT", "BOOLEAN",
		"UBIGINT", "UINTEGER", "USMALLINT", "UTINYINT":
		return table.TypeInt
	case "DOUBLE", "FLOAT":
		return table.TypeFloat
	case "VARCHAR":
		return table.TypeText
	case "TIMESTAMP", "TIMESTAMPTZ", "DATE":
		return table.TypeTimestamp
	}
	if strings.HasPrefix(databaseType, "DECIMAL") {
		return table.TypeFloat
	}
	return ""
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case *big.Int:
			if typed.IsInt64() {
				normalized[i] = typed.Int64()
			} else {
				f, _ := new(big.Float).SetInt(typed).Float64()
				normalized[i] = f
			}
		case duckdb.Decimal:
			normalized[i] = typed.Float64()
		case uint64:
			normalized[i] = int64(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
