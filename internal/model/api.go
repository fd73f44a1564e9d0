package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidateRunID checks that a run identifier is safe to splice into a URL path.
func ValidateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	if len(id) > MaxRunIDLen {
		return fmt.Errorf("run id exceeds maximum length of %d characters", MaxRunIDLen)
	}
	if strings.ContainsAny(id, "/?#%\\ \t\r\n") {
		return fmt.Errorf("run id %q contains reserved characters", id)
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Runs    int    `json:"runs"`
	Uptime  int64  `json:"uptime_seconds"`
}
