package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/selectsql/selectsql/internal/message"
	"github.com/selectsql/selectsql/internal/observability"
	"github.com/selectsql/selectsql/internal/params"
	"github.com/selectsql/selectsql/internal/table"
)

type ExecutorOptions struct {
	// SurfaceRawEngineText places the engine's own text ahead of an
	// InvalidTableName message.
	SurfaceRawEngineText bool
}

type Executor struct {
	Engine  Engine
	Logger  *slog.Logger
	Options ExecutorOptions
}

func NewExecutor(engine Engine, logger *slog.Logger, options ExecutorOptions) *Executor {
	return &Executor{Engine: engine, Logger: logger, Options: options}
}

// Render runs p.SQL against input loaded as the relation "input". The error
// return is reserved for infrastructure faults; every problem with the query
// itself is reported through Outcome.Messages.
func (e *Executor) Render(ctx context.Context, input table.Table, p params.Params) (Outcome, error) {
	start := time.Now()
	outcome, err := e.render(ctx, input, p)
	if err != nil {
		e.log(ctx, slog.LevelError, "render failed", slog.Any("error", err))
		return Outcome{}, err
	}

	observability.ObserveRender(outcomeLabel(outcome), lastKind(outcome), outputRows(outcome), time.Since(start))
	if outcome.Success() {
		e.log(ctx, slog.LevelDebug, "render succeeded",
			slog.Int("input_rows", input.NumRows()),
			slog.Int("output_rows", outcome.Table.NumRows()),
			slog.Int("output_columns", outcome.Table.NumColumns()),
			slog.String("duration", time.Since(start).String()),
		)
	} else {
		e.log(ctx, slog.LevelInfo, "render rejected query",
			slog.Any("message_kinds", message.Kinds(outcome.Messages)),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return outcome, nil
}

func (e *Executor) render(ctx context.Context, input table.Table, p params.Params) (Outcome, error) {
	if strings.TrimSpace(p.SQL) == "" {
		return failure(message.MissingQuery()), nil
	}
	if input.NumColumns() == 0 {
		return success(table.Table{}), nil
	}
	if e.Engine == nil {
		return Outcome{}, fmt.Errorf("query engine is required")
	}

	store, err := e.Engine.Load(ctx, InputTableName, input)
	if err != nil {
		return Outcome{}, fmt.Errorf("load input table: %w", err)
	}
	defer func() { _ = store.Close() }()

	result, err := store.Query(ctx, p.SQL)
	if err != nil {
		var engineErr *EngineError
		if errors.As(err, &engineErr) {
			return e.classifyFailure(engineErr), nil
		}
		return Outcome{}, fmt.Errorf("execute query: %w", err)
	}

	if problem := validateColumns(result.Columns); problem != nil {
		return failure(*problem), nil
	}
	return success(materialize(result)), nil
}

func (e *Executor) classifyFailure(err *EngineError) Outcome {
	classified := classify(err)
	if e.Options.SurfaceRawEngineText && classified.Kind == message.KindInvalidTableName {
		return failure(message.Plaintext(err.Text), classified)
	}
	return failure(classified)
}

func (e *Executor) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if e.Logger == nil {
		return
	}
	if e.Engine != nil {
		attrs = append(attrs, slog.String("engine", e.Engine.Name()))
	}
	attrs = append(attrs, observability.TraceAttr(ctx))
	e.Logger.LogAttrs(ctx, level, msg, attrs...)
}

func outcomeLabel(outcome Outcome) string {
	if outcome.Success() {
		return "success"
	}
	return "failure"
}

// lastKind names the structured message, which follows any raw engine text.
func lastKind(outcome Outcome) string {
	if len(outcome.Messages) == 0 {
		return ""
	}
	return string(outcome.Messages[len(outcome.Messages)-1].Kind)
}

func outputRows(outcome Outcome) int {
	if outcome.Table == nil {
		return 0
	}
	return outcome.Table.NumRows()
}
