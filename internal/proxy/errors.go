package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ConfigError reports a proxy backend selected for dispatch with a missing
// required field. It is raised before any network call is attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "proxy config: " + e.Reason
}

// HTTPError reports an upstream response with status >= 400. The body is
// discarded; the status code is preserved for the caller.
type HTTPError struct {
	Backend string
	Status  int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s fetch: upstream returned status %d", e.Backend, e.Status)
}

// NetworkError reports a DNS or connection level failure.
type NetworkError struct {
	Backend string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s fetch: network failure: %v", e.Backend, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports that the per-call deadline was exceeded.
type TimeoutError struct {
	Backend string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s fetch: timed out: %v", e.Backend, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// classify wraps a transport fault into the timeout/network taxonomy while
// keeping the backend identity in the message.
func classify(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Backend: backend, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Backend: backend, Err: err}
	}
	return &NetworkError{Backend: backend, Err: err}
}
