package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/selectsql/selectsql/internal/message"
	"github.com/selectsql/selectsql/internal/query"
	"github.com/selectsql/selectsql/internal/query/sqlite"
	"github.com/selectsql/selectsql/internal/table"
)

const fooTableJSON = `{"columns":[{"name":"foo","type":"int","values":[1,2,3]},{"name":"bar","type":"int","values":[2,3,4]}]}`

func renderHandler(t *testing.T) http.Handler {
	t.Helper()
	executor := query.NewExecutor(sqlite.NewEngine(), slog.New(slog.NewJSONHandler(io.Discard, nil)), query.ExecutorOptions{})
	return NewHandler(loadConfig(t, nil), Dependencies{Renderer: executor})
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decodeRender(t *testing.T, rr *httptest.ResponseRecorder) (*table.Table, []message.Message) {
	t.Helper()
	var body struct {
		Table    *table.Table      `json:"table"`
		Messages []message.Message `json:"messages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode render body: %v (%s)", err, rr.Body.String())
	}
	return body.Table, body.Messages
}

func TestRenderEndpointSuccess(t *testing.T) {
	rr := postJSON(renderHandler(t), "/v1/render", `{"table":`+fooTableJSON+`,"params":{"sql":"SELECT foo + bar AS baz FROM input"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	got, messages := decodeRender(t, rr)
	if len(messages) != 0 {
		t.Fatalf("messages = %#v", messages)
	}
	want := table.MustNew(table.Column{Name: "baz", Type: table.TypeInt, Values: []any{int64(3), int64(5), int64(7)}})
	if got == nil || !table.Equal(*got, want) {
		t.Fatalf("table = %#v", got)
	}
}

func TestRenderEndpointMigratesLegacyParams(t *testing.T) {
	rr := postJSON(renderHandler(t), "/v1/render", `{"table":`+fooTableJSON+`,"params":{"sql":"SELECT foo FROM input","run":""}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got, _ := decodeRender(t, rr); got == nil || got.NumRows() != 3 {
		t.Fatalf("table = %#v", got)
	}
}

func TestRenderEndpointReportsMessages(t *testing.T) {
	rr := postJSON(renderHandler(t), "/v1/render", `{"table":`+fooTableJSON+`,"params":{"sql":"SELECT * FROM input2"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	got, messages := decodeRender(t, rr)
	if got != nil {
		t.Fatalf("table = %#v, want null", got)
	}
	if len(messages) != 1 || messages[0].Kind != message.KindInvalidTableName {
		t.Fatalf("messages = %#v", messages)
	}
}

func TestRenderEndpointRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed json", body: `{"table":`, code: "INVALID_JSON"},
		{name: "unknown field", body: `{"tabel":{}}`, code: "INVALID_JSON"},
		{name: "ragged table", body: `{"table":{"columns":[{"name":"a","type":"int","values":[1]},{"name":"b","type":"int","values":[]}]},"params":{"sql":"SELECT 1"}}`, code: "INVALID_TABLE"},
		{name: "sql not a string", body: `{"table":` + fooTableJSON + `,"params":{"sql":3}}`, code: "INVALID_PARAMS"},
	}
	h := renderHandler(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(h, "/v1/render", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			if code := decodeErrorCode(t, rr); code != tc.code {
				t.Fatalf("error_code = %q, want %q", code, tc.code)
			}
		})
	}
}

func TestRenderEndpointWithoutRenderer(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := postJSON(h, "/v1/render", `{}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMigrateParamsEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := postJSON(h, "/v1/params/migrate", `{"sql":"SELECT 1","run":"","extra":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		FromVersion int            `json:"from_version"`
		Params      map[string]any `json:"params"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.FromVersion != 0 {
		t.Fatalf("from_version = %d", body.FromVersion)
	}
	if _, ok := body.Params["run"]; ok {
		t.Fatalf("params still carry run: %#v", body.Params)
	}
	if body.Params["sql"] != "SELECT 1" || body.Params["extra"] != true {
		t.Fatalf("params = %#v", body.Params)
	}
}
