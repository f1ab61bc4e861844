package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind tags the failure classes a tool invocation can surface. Every
// upstream or configuration problem maps to exactly one kind so callers can
// branch on it instead of parsing message text.
type ErrorKind string

const (
	// ErrNotConfigured means no server could be resolved for the request.
	ErrNotConfigured ErrorKind = "not_configured"
	// ErrTimeout means the request exceeded the fixed deadline.
	ErrTimeout ErrorKind = "timeout"
	// ErrConnect means a transport-level failure (DNS, refused, TLS handshake).
	ErrConnect ErrorKind = "connection_error"
	// ErrUpstream means the server answered with a non-200 status.
	ErrUpstream ErrorKind = "upstream_error"
	// ErrUpstreamLogical means HTTP 200 whose payload reports a failure.
	ErrUpstreamLogical ErrorKind = "upstream_logical_error"
	// ErrUnexpected covers everything else; reported, never propagated.
	ErrUnexpected ErrorKind = "unexpected_error"
)

// ToolError is the structured error crossing the aggregator boundary.
type ToolError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int             // upstream HTTP status, when applicable
	Detail     json.RawMessage // upstream body for diagnostic output
	Err        error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// classifyTransportError buckets request errors into the timeout/connect/
// unexpected kinds. Context cancellation counts as a timeout since the only
// deadline on the call path is the fixed per-request one.
func classifyTransportError(err error) *ToolError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ToolError{Kind: ErrTimeout, Message: "connection timeout", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ToolError{Kind: ErrTimeout, Message: "connection timeout", Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ToolError{Kind: ErrConnect, Message: fmt.Sprintf("connection error: %v", urlErr.Err), Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ToolError{Kind: ErrConnect, Message: fmt.Sprintf("connection error: %v", opErr), Err: err}
	}

	return &ToolError{Kind: ErrUnexpected, Message: fmt.Sprintf("unexpected error: %v", err), Err: err}
}
