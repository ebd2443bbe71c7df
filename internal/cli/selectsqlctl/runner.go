package selectsqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/selectsql/selectsql/internal/params"
	"github.com/selectsql/selectsql/internal/step"
	"github.com/selectsql/selectsql/internal/table"
	"github.com/selectsql/selectsql/internal/tablefile"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Renderer runs local render commands.
	Renderer step.Renderer
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

type env struct {
	opts    Options
	baseURL string
	apiKey  string
	client  *http.Client
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	e := env{opts: defaults, stdin: defaults.Stdin, stdout: defaults.Stdout, stderr: defaults.Stderr}
	if e.stdin == nil {
		e.stdin = strings.NewReader("")
	}
	if e.stdout == nil {
		e.stdout = io.Discard
	}
	if e.stderr == nil {
		e.stderr = io.Discard
	}

	fs := flag.NewFlagSet("selectsqlctl", flag.ContinueOnError)
	fs.SetOutput(e.stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "selectsql API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(e.stderr)
		return 2
	}

	e.baseURL = strings.TrimRight(*baseURL, "/")
	e.apiKey = strings.TrimSpace(*apiKey)
	e.client = defaults.HTTPClient
	if e.client == nil {
		e.client = &http.Client{Timeout: *timeout}
	}

	command, rest := strings.TrimSpace(fs.Arg(0)), fs.Args()[1:]
	switch command {
	case "health":
		return e.get(ctx, "/v1/health")
	case "ready":
		return e.get(ctx, "/v1/ready")
	case "runs":
		return e.get(ctx, "/v1/runs")
	case "render":
		return e.render(ctx, rest)
	case "migrate-params":
		return e.migrateParams()
	default:
		_, _ = fmt.Fprintf(e.stderr, "unknown command %q\n\n", command)
		writeUsage(e.stderr)
		return 2
	}
}

func (e env) get(ctx context.Context, path string) int {
	code, responseBody, err := doRequest(ctx, e.client, http.MethodGet, e.baseURL+path, e.apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(e.stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(e.stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(e.stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(e.stdout, string(responseBody))
	}
	return 0
}

func (e env) render(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	sqlText := fs.String("sql", "", "SELECT statement to run against the input table")
	inPath := fs.String("in", "", "input table file (parquet)")
	outPath := fs.String("out", "", "write the result table to this parquet file")
	limit := fs.Int("limit", 20, "rows to print in the preview")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inPath == "" {
		_, _ = fmt.Fprintln(e.stderr, "render: -in is required")
		return 2
	}
	if e.opts.Renderer == nil {
		_, _ = fmt.Fprintln(e.stderr, "render: no query engine configured")
		return 1
	}

	input, err := readTableFile(*inPath)
	if err != nil {
		_, _ = fmt.Fprintf(e.stderr, "render: %v\n", err)
		return 1
	}
	outcome, err := e.opts.Renderer.Render(ctx, input, params.Params{SQL: *sqlText})
	if err != nil {
		_, _ = fmt.Fprintf(e.stderr, "render failed: %v\n", err)
		return 1
	}
	if !outcome.Success() {
		for _, msg := range outcome.Messages {
			_, _ = fmt.Fprintln(e.stderr, msg.Render())
		}
		return 1
	}

	if *outPath != "" {
		if err := writeTableFile(*outPath, *outcome.Table); err != nil {
			_, _ = fmt.Fprintf(e.stderr, "render: %v\n", err)
			return 1
		}
	}
	writePreview(e.stdout, *outcome.Table, *limit)
	return 0
}

func (e env) migrateParams() int {
	var raw map[string]any
	decoder := json.NewDecoder(e.stdin)
	if err := decoder.Decode(&raw); err != nil {
		_, _ = fmt.Fprintf(e.stderr, "migrate-params: invalid JSON object on stdin: %v\n", err)
		return 1
	}
	if raw == nil {
		raw = map[string]any{}
	}
	formatted, err := json.MarshalIndent(params.Migrate(raw), "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(e.stderr, "migrate-params: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(e.stdout, string(formatted))
	return 0
}

func readTableFile(path string) (table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table.Table{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return table.Table{}, fmt.Errorf("stat input: %w", err)
	}
	t, err := tablefile.Read(f, info.Size())
	if err != nil {
		return table.Table{}, fmt.Errorf("decode input %s: %w", path, err)
	}
	return t, nil
}

func writeTableFile(path string, t table.Table) error {
	var buf bytes.Buffer
	if err := tablefile.Write(&buf, t); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func writePreview(w io.Writer, t table.Table, limit int) {
	if t.NumColumns() == 0 {
		_, _ = fmt.Fprintln(w, "(no columns)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := make([]string, 0, t.NumColumns())
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(names, "\t"))

	shown := min(t.NumRows(), max(limit, 0))
	for i := 0; i < shown; i++ {
		cells := make([]string, 0, t.NumColumns())
		for _, value := range t.Row(i) {
			cells = append(cells, formatCell(value))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	if hidden := t.NumRows() - shown; hidden > 0 {
		_, _ = fmt.Fprintf(w, "... %d more rows\n", hidden)
	}
	_, _ = fmt.Fprintf(w, "(%d rows)\n", t.NumRows())
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(typed)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: selectsqlctl [flags] <command> [command flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health           GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready            GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  runs             GET /v1/runs")
	_, _ = fmt.Fprintln(w, "  render           -sql S -in in.parquet [-out out.parquet] [-limit N]")
	_, _ = fmt.Fprintln(w, "  migrate-params   read a params JSON object on stdin, print the current shape")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
