package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Status classifies a gateway failure. The orchestrator decides retry
// behavior from this classification, not the gateway.
type Status string

const (
	StatusRateLimited   Status = "rate_limited"
	StatusUnavailable   Status = "service_unavailable"
	StatusInvalidOutput Status = "invalid_output"
	StatusBadRequest    Status = "bad_request"
	StatusUnauthorized  Status = "unauthorized"
	StatusUnknown       Status = "unknown"
)

// Error is a classified gateway failure
type Error struct {
	Status Status
	err    error
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// NewError wraps an error with a status classification
func NewError(status Status, err error) error {
	return &Error{Status: status, err: err}
}

// StatusOf returns the classification of err, or StatusUnknown
func StatusOf(err error) Status {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status
	}
	return StatusUnknown
}

// IsRetryable reports whether err is a transient failure that may succeed
// on retry: provider overload or quota exhaustion.
func IsRetryable(err error) bool {
	switch StatusOf(err) {
	case StatusRateLimited, StatusUnavailable:
		return true
	default:
		return false
	}
}

// classifyHTTPStatus maps a provider HTTP status to a classified error
func classifyHTTPStatus(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("model API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewError(StatusRateLimited, err)
	case statusCode == http.StatusServiceUnavailable,
		statusCode == http.StatusBadGateway,
		statusCode == http.StatusGatewayTimeout:
		return NewError(StatusUnavailable, err)
	case statusCode >= 500:
		return NewError(StatusUnavailable, err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		return NewError(StatusUnauthorized, err)
	case statusCode == http.StatusBadRequest:
		return NewError(StatusBadRequest, err)
	default:
		return NewError(StatusUnknown, err)
	}
}
