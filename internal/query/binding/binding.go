// Package binding picks the query engine named by configuration.
package binding

import (
	"fmt"
	"log/slog"

	"github.com/selectsql/selectsql/internal/config"
	"github.com/selectsql/selectsql/internal/query"
	"github.com/selectsql/selectsql/internal/query/duckdb"
	"github.com/selectsql/selectsql/internal/query/sqlite"
)

func New(driver config.EngineDriver) (query.Engine, error) {
	switch driver {
	case config.EngineSQLite, "":
		return sqlite.NewEngine(), nil
	case config.EngineDuckDB:
		return duckdb.NewEngine(), nil
	default:
		return nil, fmt.Errorf("unknown engine driver %q", driver)
	}
}

// NewExecutor builds an executor over the configured engine.
func NewExecutor(cfg config.EngineConfig, logger *slog.Logger) (*query.Executor, error) {
	engine, err := New(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return query.NewExecutor(engine, logger, query.ExecutorOptions{SurfaceRawEngineText: cfg.SurfaceRawErrors}), nil
}
