package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind enumerates the closed set of provider failure modes. Adapters
// must normalize transport-level failures into one of these before an error
// reaches the aggregation core.
type ErrorKind string

const (
	// KindRateLimit indicates the provider throttled the call.
	KindRateLimit ErrorKind = "RATE_LIMIT"
	// KindNotFound indicates the provider does not know the tracking number.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindTimeout indicates the call exceeded the provider's deadline.
	KindTimeout ErrorKind = "TIMEOUT"
	// KindNetwork indicates a transport failure before a response arrived.
	KindNetwork ErrorKind = "NETWORK_ERROR"
	// KindAuth indicates rejected credentials.
	KindAuth ErrorKind = "AUTH_ERROR"
	// KindInvalidResponse indicates a response that could not be decoded.
	KindInvalidResponse ErrorKind = "INVALID_RESPONSE"
)

// Error is the typed failure a provider adapter reports for one call.
type Error struct {
	Provider   string
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether a retry of the same call can possibly succeed.
// Rate limits and auth failures will not clear within a retry budget, and
// not-found or undecodable responses are deterministic.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// NewError constructs a typed provider error.
func NewError(providerID string, kind ErrorKind, message string, cause error) *Error {
	return &Error{Provider: providerID, Kind: kind, Message: message, Err: cause}
}

// AsError extracts a typed provider error from an error chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Normalize coerces an arbitrary adapter error into the closed taxonomy.
// Context deadline errors become timeouts, everything else a network error.
func Normalize(providerID string, err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := AsError(err); ok {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(providerID, KindTimeout, "provider call timed out", err)
	}
	return NewError(providerID, KindNetwork, err.Error(), err)
}
