package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/selectsql/selectsql/internal/history"
)

const runColumns = `run_id, engine, sql_text, succeeded, message_kinds, input_rows, input_columns, output_rows, COALESCE(output_key, ''), duration_ms, created_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) RecordRun(ctx context.Context, in history.RecordRunInput) (history.Run, error) {
	kinds := in.MessageKinds
	if kinds == nil {
		kinds = []string{}
	}
	kindsJSON, err := json.Marshal(kinds)
	if err != nil {
		return history.Run{}, fmt.Errorf("encode message kinds: %w", err)
	}
	var outputKey any
	if in.OutputKey != "" {
		outputKey = in.OutputKey
	}

	query := `
INSERT INTO render_run (engine, sql_text, succeeded, message_kinds, input_rows, input_columns, output_rows, output_key, duration_ms)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
RETURNING run_id, created_at`
	run := history.Run{
		Engine:       in.Engine,
		SQL:          in.SQL,
		Succeeded:    in.Succeeded,
		MessageKinds: kinds,
		InputRows:    in.InputRows,
		InputColumns: in.InputColumns,
		OutputRows:   in.OutputRows,
		OutputKey:    in.OutputKey,
		DurationMs:   in.Duration.Milliseconds(),
	}
	if err := r.db.QueryRowContext(ctx, query,
		in.Engine, in.SQL, in.Succeeded, string(kindsJSON),
		in.InputRows, in.InputColumns, in.OutputRows, outputKey, run.DurationMs,
	).Scan(&run.RunID, &run.CreatedAt); err != nil {
		return history.Run{}, fmt.Errorf("record render run: %w", err)
	}
	return run, nil
}

func (r *Repository) GetRun(ctx context.Context, runID int64) (history.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM render_run WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Run{}, history.ErrNotFound
		}
		return history.Run{}, fmt.Errorf("get render run: %w", err)
	}
	return run, nil
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]history.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM render_run ORDER BY run_id DESC LIMIT $1`,
		history.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list render runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []history.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (history.Run, error) {
	var (
		run       history.Run
		kindsJSON []byte
		createdAt time.Time
	)
	if err := row.Scan(
		&run.RunID,
		&run.Engine,
		&run.SQL,
		&run.Succeeded,
		&kindsJSON,
		&run.InputRows,
		&run.InputColumns,
		&run.OutputRows,
		&run.OutputKey,
		&run.DurationMs,
		&createdAt,
	); err != nil {
		return history.Run{}, err
	}
	if err := json.Unmarshal(kindsJSON, &run.MessageKinds); err != nil {
		return history.Run{}, fmt.Errorf("decode message kinds: %w", err)
	}
	run.CreatedAt = createdAt.UTC()
	return run, nil
}
