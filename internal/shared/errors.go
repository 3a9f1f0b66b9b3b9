// Package shared holds sentinel errors used across the domain layer.
package shared

import "errors"

var (
	// ErrNotFound indicates a referenced session, item or participant does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates user input that cannot be accepted. Always
	// recoverable: state is left exactly as it was.
	ErrValidation = errors.New("validation failed")
	// ErrBlocked indicates a workflow transition whose precondition does not hold.
	ErrBlocked = errors.New("transition blocked")
	// ErrExternal indicates a failure of the recognition service call.
	ErrExternal = errors.New("recognition service failed")
)
