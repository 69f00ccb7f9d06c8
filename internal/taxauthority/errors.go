package taxauthority

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the configured API key was refused.
var ErrUnauthorized = errors.New("tax authority rejected the API key")

// ErrRateLimited indicates the registry throttled the request.
var ErrRateLimited = &rateLimitedError{}

type rateLimitedError struct{}

func (*rateLimitedError) Error() string   { return "tax authority rate limit exceeded" }
func (*rateLimitedError) Transient() bool { return true }

// ServerError represents a 5xx or 408 response from the registry.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tax authority server error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("tax authority server error: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *ServerError) Transient() bool { return true }

// APIError represents an unexpected 4xx response. It is not retried.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tax authority request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Transient() bool { return false }

// TransportError wraps a failure to reach the registry at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tax authority unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Transient() bool { return true }
