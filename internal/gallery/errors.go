package gallery

import (
	"errors"
	"fmt"
)

// NetworkError wraps a transport-level failure (DNS, dial, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response from the gallery API.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error during %s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("server error during %s: status %d", e.Op, e.Status)
}

// ValidationError is a client-side precondition failure. No request is
// issued when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PartialFailure is the outcome of a bulk operation where some items
// succeeded and others failed independently. Only the bulk executor
// produces it.
type PartialFailure struct {
	Op        string
	Succeeded int
	Failed    []string
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d of %d succeeded, %d failed",
		e.Op, e.Succeeded, e.Succeeded+len(e.Failed), len(e.Failed))
}

// IsRecoverable reports whether err is a transient failure the
// synchronizer should ride out (keep stale data, try again next tick).
func IsRecoverable(err error) bool {
	var netErr *NetworkError
	var srvErr *ServerError
	return errors.As(err, &netErr) || errors.As(err, &srvErr)
}
