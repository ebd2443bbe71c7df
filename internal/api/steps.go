package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/selectsql/selectsql/internal/config"
	"github.com/selectsql/selectsql/internal/history"
	"github.com/selectsql/selectsql/internal/message"
	"github.com/selectsql/selectsql/internal/step"
	"github.com/selectsql/selectsql/internal/storage"
)

type stepResponse struct {
	Succeeded bool              `json:"succeeded"`
	OutputKey string            `json:"output_key,omitempty"`
	Messages  []message.Message `json:"messages"`
	Run       *history.Run      `json:"run,omitempty"`
}

func handleRunStep(deps Dependencies, cfg config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.Steps == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STEPS_NOT_CONFIGURED", "object store steps are not configured", false, nil)
		return
	}

	var request step.Input
	if err := decodeBody(cfg, w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid step request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Steps.Run(r.Context(), request)
	switch {
	case errors.Is(err, step.ErrInvalidInput):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_STEP", err.Error(), false, nil)
		return
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "INPUT_NOT_FOUND", "input table object not found", false, map[string]any{"input_key": request.InputKey})
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "STEP_FAILED", "step failed", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, stepResponse{
		Succeeded: result.Outcome.Success(),
		OutputKey: result.OutputKey,
		Messages:  result.Outcome.Messages,
		Run:       result.Run,
	})
}

func handleListRuns(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "run history is not configured", false, nil)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}

	runs, err := deps.History.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to list runs", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func handleGetRun(deps Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "run history is not configured", false, nil)
		return
	}
	runID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_RUN_ID", "run id must be an integer", false, nil)
		return
	}

	run, err := deps.History.GetRun(r.Context(), runID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "RUN_NOT_FOUND", "run not found", false, map[string]any{"run_id": runID})
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load run", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}
