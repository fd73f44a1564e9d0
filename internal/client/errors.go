package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx response from the run service.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("kanshi: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func statusIs(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsConflict returns true if the error is a 409, e.g. cancelling a finished run.
func IsConflict(err error) bool { return statusIs(err, http.StatusConflict) }

// IsBadRequest returns true if the error is a 400.
func IsBadRequest(err error) bool { return statusIs(err, http.StatusBadRequest) }

// IsRetryable reports whether repeating the request could succeed: a 5xx, a
// 429, or a transport failure. Caller cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
	return true
}
