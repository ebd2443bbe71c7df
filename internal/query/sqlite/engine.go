package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"

	"github.com/selectsql/selectsql/internal/query"
	"github.com/selectsql/selectsql/internal/table"
)

// timestampLayout matches SQLite's own datetime text so date functions keep
// working on loaded values.
const timestampLayout = "2006-01-02 15:04:05.999999999"

var timestampLayouts = []string{
	timestampLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02",
}

var resultCodeSuffix = regexp.MustCompile(` \([0-9]+\)$`)

// Engine loads tables into private in-memory SQLite databases.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return "sqlite"
}

func (e *Engine) Load(ctx context.Context, name string, input table.Table) (query.Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite connection: %w", err)
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
			row[j] = bindValue(value)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load tx: %w", err)
	}
	// Queries only read the loaded table.
	if _, err := s.conn.ExecContext(ctx, `PRAGMA query_only = ON`); err != nil {
		return fmt.Errorf("set query_only: %w", err)
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
		resultRows = append(resultRows, normalizeValues(columns, values))
	}
	if err := rows.Err(); err != nil {
		return query.ResultSet{}, engineError(err)
	}

	return query.ResultSet{Columns: columns, Rows: resultRows}, nil
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

// engineError strips the driver's "SQL logic error: " and " (1)" decoration so
// classification sees SQLite's own message.
func engineError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	text := err.Error()
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		text = resultCodeSuffix.ReplaceAllString(sqliteErr.Error(), "")
		if _, rest, ok := strings.Cut(text, ": "); ok {
			text = rest
		}
	}
	return &query.EngineError{Category: query.CategoryDatabase, Text: text, Err: err}
}

func declaredType(typ table.Type) string {
	switch typ {
	case table.TypeInt:
		return "INTEGER"
	case table.TypeFloat:
		return "REAL"
	case table.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func mapDatabaseType(databaseType string) table.Type {
	switch databaseType {
	case "INTEGER", "INT", "BIGINT":
		return table.TypeInt
	case "REAL", "DOUBLE", "FLOAT":
		return table.TypeFloat
	case "TEXT", "VARCHAR":
		return table.TypeText
	case "TIMESTAMP", "DATETIME", "DATE":
		return table.TypeTimestamp
	default:
		return ""
	}
}

func bindValue(value any) any {
	if ts, ok := value.(time.Time); ok {
		return ts.UTC().Format(timestampLayout)
	}
	return value
}

func normalizeValues(columns []query.ColumnDesc, values []any) []any {
	for i, value := range values {
		raw, ok := value.(string)
		if !ok || columns[i].Type != table.TypeTimestamp {
			continue
		}
		if ts, ok := parseTimestamp(raw); ok {
			values[i] = ts
		}
	}
	return values
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
