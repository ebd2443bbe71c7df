package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/selectsql/selectsql/internal/history"
)

var runRowColumns = []string{
	"run_id", "engine", "sql_text", "succeeded", "message_kinds", "input_rows",
	"input_columns", "output_rows", "output_key", "duration_ms", "created_at",
}

func TestRecordRun(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO render_run (engine, sql_text, succeeded, message_kinds, input_rows, input_columns, output_rows, output_key, duration_ms)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
RETURNING run_id, created_at`)).
		WithArgs("sqlite", "SELECT * FROM input2", false, `["invalid_table_name"]`, 3, 1, 0, nil, int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "created_at"}).AddRow(int64(9), now))

	run, err := repo.RecordRun(context.Background(), history.RecordRunInput{
		Engine:       "sqlite",
		SQL:          "SELECT * FROM input2",
		MessageKinds: []string{"invalid_table_name"},
		InputRows:    3,
		InputColumns: 1,
		Duration:     12 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if run.RunID != 9 || !run.CreatedAt.Equal(now) || run.DurationMs != 12 {
		t.Fatalf("run = %#v", run)
	}
	assertSQLMock(t, mock)
}

func TestRecordRunStoresEmptyKindsAsArray(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectQuery(`INSERT INTO render_run`).
		WithArgs("duckdb", "SELECT 1", true, `[]`, 1, 1, 1, "out.parquet", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "created_at"}).AddRow(int64(1), time.Now()))

	run, err := repo.RecordRun(context.Background(), history.RecordRunInput{
		Engine: "duckdb", SQL: "SELECT 1", Succeeded: true,
		InputRows: 1, InputColumns: 1, OutputRows: 1, OutputKey: "out.parquet",
	})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if run.MessageKinds == nil || len(run.MessageKinds) != 0 {
		t.Fatalf("MessageKinds = %#v", run.MessageKinds)
	}
	assertSQLMock(t, mock)
}

func TestListRunsClampsLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM render_run ORDER BY run_id DESC LIMIT $1`)).
		WithArgs(history.MaxListLimit).
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow(int64(2), "sqlite", "SELECT A, A FROM input", false, []byte(`["duplicate_column_name"]`), 3, 1, 0, "", int64(4), now).
			AddRow(int64(1), "sqlite", "SELECT * FROM input", true, []byte(`[]`), 3, 1, 3, "out.parquet", int64(2), now))

	runs, err := repo.ListRuns(context.Background(), 10_000)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d", len(runs))
	}
	if runs[0].MessageKinds[0] != "duplicate_column_name" || runs[1].OutputKey != "out.parquet" {
		t.Fatalf("runs = %#v", runs)
	}
	assertSQLMock(t, mock)
}

func TestGetRunReturnsNotFound(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM render_run WHERE run_id = $1`)).
		WithArgs(int64(77)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRun(context.Background(), 77)
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("GetRun() error = %v, want ErrNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	mock.ExpectPing()

	if err := NewRepository(db).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
