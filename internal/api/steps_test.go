package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/selectsql/selectsql/internal/history"
	"github.com/selectsql/selectsql/internal/query"
	"github.com/selectsql/selectsql/internal/query/sqlite"
	"github.com/selectsql/selectsql/internal/step"
	"github.com/selectsql/selectsql/internal/storage"
	"github.com/selectsql/selectsql/internal/table"
	"github.com/selectsql/selectsql/internal/tablefile"
)

func stepHandler(t *testing.T, recorder *fakeRecorder) (http.Handler, *storage.Memory) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := storage.NewMemory()
	executor := query.NewExecutor(sqlite.NewEngine(), logger, query.ExecutorOptions{})
	runner := step.NewRunner(store, executor, recorder, "sqlite", logger)
	return NewHandler(loadConfig(t, nil), Dependencies{Renderer: executor, Steps: runner, History: recorder}), store
}

func putTable(t *testing.T, store *storage.Memory, key string, input table.Table) {
	t.Helper()
	var buf bytes.Buffer
	if err := tablefile.Write(&buf, input); err != nil {
		t.Fatalf("tablefile.Write() error = %v", err)
	}
	if _, err := store.Put(context.Background(), key, &buf, int64(buf.Len()), storage.PutOptions{ContentType: storage.ParquetContentType}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
}

func TestRunStepEndpointWritesResult(t *testing.T) {
	recorder := &fakeRecorder{}
	h, store := stepHandler(t, recorder)
	putTable(t, store, "tables/in.parquet", table.MustNew(
		table.Column{Name: "foo", Type: table.TypeInt, Values: []any{int64(1), int64(2)}},
	))

	rr := postJSON(h, "/v1/steps/run", `{"input_key":"tables/in.parquet","params":{"sql":"SELECT foo * 10 AS big FROM input"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body stepResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Succeeded || body.OutputKey != "tables/in.result.parquet" {
		t.Fatalf("body = %#v", body)
	}
	if body.Run == nil || body.Run.RunID != 1 {
		t.Fatalf("run = %#v", body.Run)
	}

	data, err := storage.ReadAll(context.Background(), store, body.OutputKey)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	got, err := tablefile.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("tablefile.Read() error = %v", err)
	}
	want := table.MustNew(table.Column{Name: "big", Type: table.TypeInt, Values: []any{int64(10), int64(20)}})
	if !table.Equal(got, want) {
		t.Fatalf("output = %#v", got)
	}
}

func TestRunStepEndpointErrors(t *testing.T) {
	h, _ := stepHandler(t, &fakeRecorder{})
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "missing input", body: `{"input_key":"tables/nope.parquet","params":{"sql":"SELECT 1"}}`, status: http.StatusNotFound, code: "INPUT_NOT_FOUND"},
		{name: "same output", body: `{"input_key":"a.parquet","output_key":"a.parquet","params":{"sql":"SELECT 1"}}`, status: http.StatusBadRequest, code: "INVALID_STEP"},
		{name: "bad params", body: `{"input_key":"a.parquet","params":{"sql":false}}`, status: http.StatusBadRequest, code: "INVALID_STEP"},
		{name: "bad json", body: `[]`, status: http.StatusBadRequest, code: "INVALID_JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(h, "/v1/steps/run", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
			}
			if code := decodeErrorCode(t, rr); code != tc.code {
				t.Fatalf("error_code = %q, want %q", code, tc.code)
			}
		})
	}
}

func TestRunsEndpoints(t *testing.T) {
	recorder := &fakeRecorder{runs: []history.Run{
		{RunID: 1, Engine: "sqlite", SQL: "SELECT 1", Succeeded: true},
		{RunID: 2, Engine: "sqlite", SQL: "SELECT 2", Succeeded: false},
	}}
	h, _ := stepHandler(t, recorder)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list struct {
		Runs []history.Run `json:"runs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].RunID != 2 {
		t.Fatalf("runs = %#v", list.Runs)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	for path, want := range map[string]int{
		"/v1/runs/99":      http.StatusNotFound,
		"/v1/runs/abc":     http.StatusBadRequest,
		"/v1/runs?limit=0": http.StatusBadRequest,
	} {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Fatalf("%s status = %d, want %d", path, rr.Code, want)
		}
	}
}

func TestRunsEndpointHistoryFailure(t *testing.T) {
	h, _ := stepHandler(t, &fakeRecorder{err: errors.New("db down")})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRunsEndpointWithoutHistory(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}
