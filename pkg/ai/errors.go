package ai

import (
	"context"
	"errors"
	"fmt"
)

// ServiceError classifies a failed AI request at the provider boundary.
// Transient failures (network errors, timeouts, 429/5xx responses) are
// eligible for retry with backoff; terminal failures (auth, validation,
// unparseable output) propagate immediately.
type ServiceError struct {
	Transient bool
	Message   string
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ai: %s", e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retriable service error.
func NewTransientError(message string, err error) *ServiceError {
	return &ServiceError{Transient: true, Message: message, Err: err}
}

// NewTerminalError wraps err as a non-retriable service error.
func NewTerminalError(message string, err error) *ServiceError {
	return &ServiceError{Transient: false, Message: message, Err: err}
}

// IsTransient reports whether err is a retriable service error. Context
// cancellation is never transient: a canceled request must not be retried.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}

// TransientStatus reports whether an HTTP status code from a provider
// indicates an overload or server-side condition worth retrying.
func TransientStatus(status int) bool {
	switch {
	case status == 408, status == 429:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}
