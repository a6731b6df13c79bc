// Package errs defines the error taxonomy shared by the client core.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the refresh protocol failed terminally: either the
	// refresh endpoint rejected us, or a retry after refresh was still
	// unauthorized. The session has already been demoted when this is returned.
	ErrAuthExpired = errors.New("session expired")

	// ErrTransportClosed is reported when the realtime push connection drops.
	// It is not a user-facing failure: REST send/receive keeps working.
	ErrTransportClosed = errors.New("realtime transport closed")

	ErrNotFound = errors.New("not found")
)

// ValidationError carries the server's human-readable rejection reason for a
// well-formed request. Detail is surfaced to the user verbatim.
type ValidationError struct {
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server rejected request (status %d)", e.Status)
	}
	return e.Detail
}

// NetworkError wraps a request that could not complete at all (timeout,
// connectivity, malformed response).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a server-side rejection with a detail
// message, as opposed to a transport failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
