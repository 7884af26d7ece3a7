package query

import "errors"

var (
	// ErrInvalidPattern is returned when a pattern fails to compile. No waiter is created.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrTimeout is returned when no matching line arrived before the deadline.
	ErrTimeout = errors.New("query timed out")

	// ErrCancelled is returned when the waiter was cancelled by the caller's
	// context or by a lifecycle transition.
	ErrCancelled = errors.New("query cancelled")

	// ErrStopped is returned when the bridge is not running.
	ErrStopped = errors.New("query bridge is stopped")

	// ErrTransport is returned when the command could not be handed to the server.
	ErrTransport = errors.New("command transport failed")
)
