package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kanshi/internal/model"
	"github.com/ashita-ai/kanshi/internal/testutil"
)

// mockServer creates an httptest server that mimics the run service.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: serverURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
		Version: "1.2.3",
	})
	require.NoError(t, err)
	return c
}

func succeededRun(id string) model.Run {
	return model.Run{
		ID:           id,
		Executor:     "claude",
		Status:       model.RunStatusSucceeded,
		CreatedAt:    testutil.Epoch,
		FilesChanged: []model.FileDiff{{Path: "main.go", Additions: 3, Deletions: 1}},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "BaseURL is required")

	_, err = New(Config{BaseURL: "localhost:8090"})
	assert.ErrorContains(t, err, "not an absolute URL")

	c, err := New(Config{BaseURL: "http://localhost:8090/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8090", c.baseURL)
	assert.Equal(t, "kanshi-go/dev", c.userAgent)
	assert.Equal(t, DefaultConcurrency, c.concurrency)
}

func TestGetRun_UnwrapsEnvelopeAndSendsHeaders(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "run-1", r.PathValue("run_id"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "kanshi-go/1.2.3", r.Header.Get("User-Agent"))
			_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
			assert.NoError(t, err, "X-Request-ID should be a uuid")
			writeJSON(w, http.StatusOK, map[string]any{"data": succeededRun("run-1")})
		},
	})
	run, err := newTestClient(t, srv.URL).GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	require.Len(t, run.FilesChanged, 1)
	assert.Equal(t, 3, run.FilesChanged[0].Additions)
}

func TestGetRun_RawPayloadFallback(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, succeededRun("raw"))
		},
	})
	run, err := newTestClient(t, srv.URL).GetRun(context.Background(), "raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", run.ID)
}

func TestGetRun_NormalizesFailedRun(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			run := succeededRun("f")
			run.Status = model.RunStatusFailed
			writeJSON(w, http.StatusOK, map[string]any{"data": run})
		},
	})
	run, err := newTestClient(t, srv.URL).GetRun(context.Background(), "f")
	require.NoError(t, err)
	assert.Nil(t, run.FilesChanged)
}

func TestGetRun_NotFound(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"code": "NOT_FOUND", "message": "run not found"},
			})
		},
	})
	_, err := newTestClient(t, srv.URL).GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "run not found", apiErr.Message)
}

func TestGetRun_PlainTextError(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		},
	})
	_, err := newTestClient(t, srv.URL).GetRun(context.Background(), "r")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Gateway", apiErr.Code)
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.True(t, IsRetryable(err))
}

func TestGetRun_InvalidIDNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := mockServer(t, map[string]http.HandlerFunc{
		"/": func(w http.ResponseWriter, r *http.Request) { hits.Add(1) },
	})
	c := newTestClient(t, srv.URL)

	_, err := c.GetRun(context.Background(), "../etc")
	assert.Error(t, err)
	_, err = c.FetchLogs(context.Background(), "", 0)
	assert.Error(t, err)
	assert.Error(t, c.CancelRun(context.Background(), "a/b"))
	assert.Zero(t, hits.Load())
}

func TestGetRuns_PreservesOrder(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			id := r.PathValue("run_id")
			// Later ids answer first.
			if id == "a" {
				time.Sleep(20 * time.Millisecond)
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": succeededRun(id)})
		},
	})
	runs, err := newTestClient(t, srv.URL).GetRuns(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "c", runs[2].ID)
}

func TestGetRuns_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"data": succeededRun(r.PathValue("run_id"))})
		},
	})
	c, err := New(Config{BaseURL: srv.URL, Concurrency: 2})
	require.NoError(t, err)

	_, err = c.GetRuns(context.Background(), []string{"1", "2", "3", "4", "5", "6"})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestGetRuns_FirstErrorWins(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("run_id") == "bad" {
				writeJSON(w, http.StatusNotFound, map[string]any{
					"error": map[string]any{"code": "NOT_FOUND", "message": "run not found"},
				})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": succeededRun(r.PathValue("run_id"))})
		},
	})
	runs, err := newTestClient(t, srv.URL).GetRuns(context.Background(), []string{"ok", "bad"})
	assert.True(t, IsNotFound(err))
	assert.Nil(t, runs)
}

func TestListRuns_Filters(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "task-9", q.Get("task_id"))
			assert.Equal(t, "codex", q.Get("executor"))
			assert.Equal(t, "20", q.Get("limit"))
			failed := succeededRun("r2")
			failed.Status = model.RunStatusFailed
			writeJSON(w, http.StatusOK, map[string]any{
				"data": model.RunList{Runs: []model.Run{succeededRun("r1"), failed}},
			})
		},
	})
	runs, err := newTestClient(t, srv.URL).ListRuns(context.Background(), ListOptions{
		TaskID: "task-9", Executor: "codex", Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEmpty(t, runs[0].FilesChanged)
	assert.Nil(t, runs[1].FilesChanged)
}

func TestListRuns_NoFilters(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs": func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			writeJSON(w, http.StatusOK, map[string]any{"data": model.RunList{}})
		},
	})
	runs, err := newTestClient(t, srv.URL).ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestFetchLogs(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /runs/{run_id}/logs": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "7", r.URL.Query().Get("from_line"))
			writeJSON(w, http.StatusOK, map[string]any{"data": model.LogPage{
				Logs:       testutil.OutputLines(7, 2),
				TotalLines: 9,
				RunStatus:  model.RunStatusRunning,
			}})
		},
	})
	page, err := newTestClient(t, srv.URL).FetchLogs(context.Background(), "run-1", 7)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, testutil.LineNumbers(page.Logs))
	assert.Equal(t, 9, page.TotalLines)
	assert.False(t, page.IsComplete)
}

func TestFetchLogs_NegativeOffset(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.FetchLogs(context.Background(), "run-1", -1)
	assert.ErrorContains(t, err, "from_line")
}

func TestFetchLogs_TransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).FetchLogs(context.Background(), "run-1", 0)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCancelRun(t *testing.T) {
	for _, status := range []int{http.StatusAccepted, http.StatusNoContent} {
		srv := mockServer(t, map[string]http.HandlerFunc{
			"POST /runs/{run_id}/cancel": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			},
		})
		assert.NoError(t, newTestClient(t, srv.URL).CancelRun(context.Background(), "run-1"), "status %d", status)
	}
}

func TestCancelRun_Conflict(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /runs/{run_id}/cancel": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": map[string]any{"code": "CONFLICT", "message": "run already finished"},
			})
		},
	})
	err := newTestClient(t, srv.URL).CancelRun(context.Background(), "run-1")
	assert.True(t, IsConflict(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(&Error{StatusCode: 503}))
	assert.True(t, IsRetryable(&Error{StatusCode: 429}))
	assert.False(t, IsRetryable(&Error{StatusCode: 400}))
	assert.True(t, IsRetryable(errors.New("connection refused")))
	assert.True(t, IsBadRequest(&Error{StatusCode: 400}))
}
