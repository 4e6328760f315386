package wip

import (
	"errors"
	"fmt"
)

// ErrClientNotFound indicates the requested client code resolves to nothing.
var ErrClientNotFound = errors.New("wip: client not found")

// ValidationError reports a rejected filter parameter with the offending
// field named so the caller can surface it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wip: invalid %s: %s", e.Field, e.Message)
}

// UpstreamError wraps a ledger source or directory failure. It is never
// retried here; retries belong to the source's transport layer.
type UpstreamError struct {
	Strategy string
	Window   PeriodWindow
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("wip: upstream %s failed for window %s: %v", e.Strategy, e.Window, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
