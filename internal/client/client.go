// Package client is an HTTP client for the backend run service: run lookup
// and listing, paged log retrieval, and advisory cancellation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kanshi/internal/model"
	"github.com/ashita-ai/kanshi/internal/telemetry"
)

// DefaultConcurrency bounds the parallel requests issued by GetRuns.
const DefaultConcurrency = 4

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the run service (e.g. "http://localhost:8090").
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a client with
	// Timeout and an otel-instrumented transport is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration

	// Version is reported in the User-Agent header.
	Version string

	// Concurrency bounds GetRuns. Defaults to DefaultConcurrency.
	Concurrency int
}

// Client talks to the run service. All methods are safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	userAgent   string
	concurrency int
	client      *http.Client
	tracer      trace.Tracer
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kanshi: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("kanshi: BaseURL %q is not an absolute URL", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		userAgent:   "kanshi-go/" + version,
		concurrency: concurrency,
		client:      httpClient,
		tracer:      telemetry.Tracer("kanshi/client"),
	}, nil
}

// GetRun retrieves one run. Files are dropped from runs that did not succeed.
func (c *Client) GetRun(ctx context.Context, runID string) (model.Run, error) {
	if err := model.ValidateRunID(runID); err != nil {
		return model.Run{}, fmt.Errorf("kanshi: %w", err)
	}
	var run model.Run
	if err := c.get(ctx, "/runs/"+url.PathEscape(runID), &run); err != nil {
		return model.Run{}, err
	}
	return run.Normalize(), nil
}

// GetRuns retrieves several runs concurrently and returns them in the order
// of ids. The first failure cancels the remaining requests.
func (c *Client) GetRuns(ctx context.Context, ids []string) ([]model.Run, error) {
	ctx, span := c.tracer.Start(ctx, "kanshi.client.GetRuns",
		trace.WithAttributes(attribute.Int("kanshi.run_count", len(ids))))
	defer span.End()

	runs := make([]model.Run, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			run, err := c.GetRun(gctx, id)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return runs, nil
}

// ListOptions are optional filters for ListRuns.
type ListOptions struct {
	TaskID   string
	Executor string
	Limit    int
}

// ListRuns lists runs, newest first as ordered by the service.
func (c *Client) ListRuns(ctx context.Context, opts ListOptions) ([]model.Run, error) {
	params := url.Values{}
	if opts.TaskID != "" {
		params.Set("task_id", opts.TaskID)
	}
	if opts.Executor != "" {
		params.Set("executor", opts.Executor)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/runs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp model.RunList
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	runs := make([]model.Run, len(resp.Runs))
	for i, r := range resp.Runs {
		runs[i] = r.Normalize()
	}
	return runs, nil
}

// FetchLogs returns the log lines of runID with line numbers >= fromLine.
func (c *Client) FetchLogs(ctx context.Context, runID string, fromLine int) (model.LogPage, error) {
	if err := model.ValidateRunID(runID); err != nil {
		return model.LogPage{}, fmt.Errorf("kanshi: %w", err)
	}
	if fromLine < 0 {
		return model.LogPage{}, fmt.Errorf("kanshi: from_line must be >= 0, got %d", fromLine)
	}
	path := "/runs/" + url.PathEscape(runID) + "/logs?from_line=" + strconv.Itoa(fromLine)
	var page model.LogPage
	if err := c.get(ctx, path, &page); err != nil {
		return model.LogPage{}, err
	}
	return page, nil
}

// CancelRun asks the service to stop a run. The request is advisory: the run
// may still finish with another status.
func (c *Client) CancelRun(ctx context.Context, runID string) error {
	if err := model.ValidateRunID(runID); err != nil {
		return fmt.Errorf("kanshi: %w", err)
	}
	return c.post(ctx, "/runs/"+url.PathEscape(runID)+"/cancel", nil, nil)
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("kanshi: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("kanshi: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kanshi: create request: %w", err)
	}
	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("kanshi: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kanshi: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("kanshi: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		// Unwrapped payload.
		if err := json.Unmarshal(bodyBytes, dest); err != nil {
			return fmt.Errorf("kanshi: decode response: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("kanshi: decode response data: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
