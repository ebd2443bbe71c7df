// Package history records every render run so operators can audit which
// queries a step executed and how they ended.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: not found")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Recorder interface {
	HealthCheck(ctx context.Context) error
	RecordRun(ctx context.Context, in RecordRunInput) (Run, error)
	GetRun(ctx context.Context, runID int64) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

type Run struct {
	RunID        int64     `json:"run_id"`
	Engine       string    `json:"engine"`
	SQL          string    `json:"sql"`
	Succeeded    bool      `json:"succeeded"`
	MessageKinds []string  `json:"message_kinds"`
	InputRows    int       `json:"input_rows"`
	InputColumns int       `json:"input_columns"`
	OutputRows   int       `json:"output_rows"`
	OutputKey    string    `json:"output_key,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

type RecordRunInput struct {
	Engine       string
	SQL          string
	Succeeded    bool
	MessageKinds []string
	InputRows    int
	InputColumns int
	OutputRows   int
	OutputKey    string
	Duration     time.Duration
}

// ClampLimit maps a requested page size onto [1, MaxListLimit], using
// DefaultListLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
