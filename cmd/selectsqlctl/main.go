package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/selectsql/selectsql/internal/cli/selectsqlctl"
	"github.com/selectsql/selectsql/internal/config"
	"github.com/selectsql/selectsql/internal/query/binding"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("SELECTSQL_CLI_TIMEOUT")), 10*time.Second)
	options := selectsqlctl.Options{
		BaseURL: envOr("SELECTSQL_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("SELECTSQL_API_KEY")),
		Timeout: timeout,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	cfg, err := config.LoadFromEnv("selectsqlctl")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	executor, err := binding.NewExecutor(cfg.Engine, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "engine error: %v\n", err)
		os.Exit(1)
	}
	options.Renderer = executor

	code := selectsqlctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid SELECTSQL_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
