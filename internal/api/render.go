package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/selectsql/selectsql/internal/config"
	"github.com/selectsql/selectsql/internal/message"
	"github.com/selectsql/selectsql/internal/params"
	"github.com/selectsql/selectsql/internal/table"
)

type renderRequest struct {
	Table  json.RawMessage `json:"table"`
	Params map[string]any  `json:"params"`
}

type renderResponse struct {
	Table    *table.Table      `json:"table"`
	Messages []message.Message `json:"messages"`
}

func handleRender(deps Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Renderer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RENDER_NOT_CONFIGURED", "render engine is not configured", false, nil)
		return
	}

	var request renderRequest
	if err := decodeBody(cfg, w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid render request body", false, map[string]any{"details": err.Error()})
		return
	}

	var input table.Table
	if len(request.Table) > 0 && string(request.Table) != "null" {
		if err := json.Unmarshal(request.Table, &input); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TABLE", "invalid input table", false, map[string]any{"details": err.Error()})
			return
		}
	}
	p, err := params.Decode(request.Params)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PARAMS", "invalid render params", false, map[string]any{"details": err.Error()})
		return
	}

	ctx := r.Context()
	if cfg.HTTP.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.HTTP.RequestTimeout)
		defer cancel()
	}
	outcome, err := deps.Renderer.Render(ctx, input, p)
	if err != nil {
		status, retryable := http.StatusInternalServerError, true
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(r.Context(), w, status, "RENDER_FAILED", "render failed", retryable, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{Table: outcome.Table, Messages: outcome.Messages})
}

func handleMigrateParams(_ Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(cfg, w, r, &raw); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "params must be a JSON object", false, map[string]any{"details": err.Error()})
		return
	}
	if raw == nil {
		raw = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from_version": params.Version(raw),
		"params":       params.Migrate(raw),
	})
}
