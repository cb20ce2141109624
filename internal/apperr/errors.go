// Package apperr defines the sentinel error kinds shared across the
// dispatch core. Callers compare with errors.Is rather than switching on
// a numeric code.
package apperr

import "errors"

var (
	// ErrNotFound indicates the requested session, shard, or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBusy indicates the server cannot accept the request right now,
	// typically because it is shutting down.
	ErrBusy = errors.New("busy")

	// ErrInternal indicates an internal invariant or storage failure.
	ErrInternal = errors.New("internal error")

	// ErrParse indicates the request could not be parsed into a command.
	ErrParse = errors.New("parse error")

	// ErrAuth indicates a failed authentication check.
	ErrAuth = errors.New("auth error")

	// ErrTimeout indicates an operation exceeded its allotted time.
	ErrTimeout = errors.New("timeout")
)
