package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/selectsql/selectsql/internal/api"
	"github.com/selectsql/selectsql/internal/auth"
	"github.com/selectsql/selectsql/internal/config"
	"github.com/selectsql/selectsql/internal/history"
	historypostgres "github.com/selectsql/selectsql/internal/history/postgres"
	"github.com/selectsql/selectsql/internal/observability"
	"github.com/selectsql/selectsql/internal/query/binding"
	"github.com/selectsql/selectsql/internal/step"
	s3store "github.com/selectsql/selectsql/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("selectsql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	executor, err := binding.NewExecutor(cfg.Engine, logger)
	if err != nil {
		logger.Error("failed to initialize query engine", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		recorder  history.Recorder
		historyDB *sql.DB
	)
	if cfg.History.Enabled() {
		historyDB, err = historypostgres.Open(context.Background(), cfg.History)
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		recorder = historypostgres.NewRepository(historyDB)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Renderer:          executor,
		History:           recorder,
		DependencyTimeout: time.Second,
	}
	readiness := []api.ReadinessCheck{api.CheckHistory(recorder)}
	if cfg.ObjectStore.Endpoint != "" {
		objectStore, err := s3store.New(context.Background(), cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Steps = step.NewRunner(objectStore, executor, recorder, executor.Engine.Name(), logger)
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg), objectStore.CheckBucket)
	}
	deps.Readiness = api.CombineReadinessChecks(readiness...)

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("engine", executor.Engine.Name()),
			slog.Bool("history", recorder != nil),
			slog.Bool("steps", deps.Steps != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
