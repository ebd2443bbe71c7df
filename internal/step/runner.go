// Package step runs the render core as a pipeline step whose input and output
// tables live in an object store.
package step

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/selectsql/selectsql/internal/history"
	"github.com/selectsql/selectsql/internal/message"
	"github.com/selectsql/selectsql/internal/observability"
	"github.com/selectsql/selectsql/internal/params"
	"github.com/selectsql/selectsql/internal/query"
	"github.com/selectsql/selectsql/internal/storage"
	"github.com/selectsql/selectsql/internal/table"
	"github.com/selectsql/selectsql/internal/tablefile"
)

var ErrInvalidInput = errors.New("step: invalid input")

// Renderer is the slice of query.Executor the runner depends on.
type Renderer interface {
	Render(ctx context.Context, input table.Table, p params.Params) (query.Outcome, error)
}

type Input struct {
	InputKey  string         `json:"input_key"`
	OutputKey string         `json:"output_key,omitempty"`
	Params    map[string]any `json:"params"`
}

type Result struct {
	Outcome   query.Outcome
	OutputKey string
	Run       *history.Run
}

type Runner struct {
	store    storage.ObjectStore
	renderer Renderer
	recorder history.Recorder
	engine   string
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner builds a runner. recorder may be nil when history is disabled.
func NewRunner(store storage.ObjectStore, renderer Renderer, recorder history.Recorder, engine string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    store,
		renderer: renderer,
		recorder: recorder,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	if r.store == nil || r.renderer == nil {
		return Result{}, fmt.Errorf("step runner is not configured")
	}
	start := r.now()

	outputKey, err := r.resolveOutputKey(in)
	if err != nil {
		observability.IncrementStepRun("error")
		return Result{}, err
	}
	p, err := params.Decode(in.Params)
	if err != nil {
		observability.IncrementStepRun("error")
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	input, err := r.readTable(ctx, in.InputKey)
	if err != nil {
		observability.IncrementStepRun("error")
		return Result{}, err
	}

	outcome, err := r.renderer.Render(ctx, input, p)
	if err != nil {
		observability.IncrementStepRun("error")
		return Result{}, fmt.Errorf("render step: %w", err)
	}

	result := Result{Outcome: outcome}
	if outcome.Success() && outcome.Table.NumColumns() > 0 {
		if err := r.writeTable(ctx, outputKey, *outcome.Table); err != nil {
			observability.IncrementStepRun("error")
			return Result{}, err
		}
		result.OutputKey = outputKey
	}

	result.Run = r.record(ctx, history.RecordRunInput{
		Engine:       r.engine,
		SQL:          p.SQL,
		Succeeded:    outcome.Success(),
		MessageKinds: message.Kinds(outcome.Messages),
		InputRows:    input.NumRows(),
		InputColumns: input.NumColumns(),
		OutputRows:   outputRows(outcome),
		OutputKey:    result.OutputKey,
		Duration:     r.now().Sub(start),
	})

	if outcome.Success() {
		observability.IncrementStepRun("success")
	} else {
		observability.IncrementStepRun("failure")
	}
	return result, nil
}

func (r *Runner) resolveOutputKey(in Input) (string, error) {
	if _, err := storage.CleanKey(in.InputKey); err != nil {
		return "", fmt.Errorf("%w: input_key: %v", ErrInvalidInput, err)
	}
	if in.OutputKey == "" {
		return storage.ResultKey(in.InputKey)
	}
	outputKey, err := storage.CleanKey(in.OutputKey)
	if err != nil {
		return "", fmt.Errorf("%w: output_key: %v", ErrInvalidInput, err)
	}
	if inputKey, _ := storage.CleanKey(in.InputKey); inputKey == outputKey {
		return "", fmt.Errorf("%w: output_key must differ from input_key", ErrInvalidInput)
	}
	return outputKey, nil
}

func (r *Runner) readTable(ctx context.Context, key string) (table.Table, error) {
	data, err := storage.ReadAll(ctx, r.store, key)
	if err != nil {
		return table.Table{}, fmt.Errorf("read input table %q: %w", key, err)
	}
	t, err := tablefile.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return table.Table{}, fmt.Errorf("decode input table %q: %w", key, err)
	}
	return t, nil
}

func (r *Runner) writeTable(ctx context.Context, key string, t table.Table) error {
	var buf bytes.Buffer
	if err := tablefile.Write(&buf, t); err != nil {
		return fmt.Errorf("encode output table: %w", err)
	}
	if _, err := r.store.Put(ctx, key, &buf, int64(buf.Len()), storage.PutOptions{ContentType: storage.ParquetContentType}); err != nil {
		return fmt.Errorf("write output table %q: %w", key, err)
	}
	return nil
}

// record stores the run when history is enabled. A history failure never
// fails the step.
func (r *Runner) record(ctx context.Context, in history.RecordRunInput) *history.Run {
	if r.recorder == nil {
		return nil
	}
	run, err := r.recorder.RecordRun(ctx, in)
	if err != nil {
		r.logger.WarnContext(ctx, "record render run failed",
			observability.TraceAttr(ctx),
			slog.Any("error", err),
		)
		return nil
	}
	return &run
}

func outputRows(outcome query.Outcome) int {
	if outcome.Table == nil {
		return 0
	}
	return outcome.Table.NumRows()
}
