package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/kanshi/internal/model"
)

// maxListLimit caps GET /runs?limit=.
const maxListLimit = 500

// Handlers serves the run service endpoints from a Store.
type Handlers struct {
	store     *Store
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// NewHandlers creates Handlers over store.
func NewHandlers(store *Store, logger *slog.Logger, version string) *Handlers {
	return &Handlers{store: store, logger: logger, version: version, startedAt: time.Now()}
}

// HandleListRuns handles GET /runs.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be a non-negative integer")
		return
	}
	q := r.URL.Query()
	runs := h.store.ListRuns(ListFilter{
		TaskID:   q.Get("task_id"),
		Executor: q.Get("executor"),
		Limit:    min(limit, maxListLimit),
	})
	writeJSON(w, r, http.StatusOK, model.RunList{Runs: runs})
}

// HandleGetRun handles GET /runs/{run_id}.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathRunID(w, r)
	if !ok {
		return
	}
	run, err := h.store.GetRun(runID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// HandleRunLogs handles GET /runs/{run_id}/logs?from_line=N.
func (h *Handlers) HandleRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathRunID(w, r)
	if !ok {
		return
	}
	from, err := queryInt(r, "from_line", 0)
	if err != nil || from < 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "from_line must be a non-negative integer")
		return
	}
	page, err := h.store.Logs(runID, from)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// HandleCancelRun handles POST /runs/{run_id}/cancel. The run is returned
// with 202 Accepted; a run that already finished is a 409.
func (h *Handlers) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathRunID(w, r)
	if !ok {
		return
	}
	run, err := h.store.Cancel(runID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.Info("run canceled", "run_id", runID, "request_id", RequestIDFromContext(r.Context()))
	writeJSON(w, r, http.StatusAccepted, run)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Runs:    h.store.Len(),
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "run not found")
	case errors.Is(err, ErrRunFinished):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "run already finished")
	default:
		h.logger.Error("store operation failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

func pathRunID(w http.ResponseWriter, r *http.Request) (string, bool) {
	runID := r.PathValue("run_id")
	if err := model.ValidateRunID(runID); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return "", false
	}
	return runID, true
}

func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}
