package errors

import "errors"

// Sentinel errors shared across storage and client adapters.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates that an external collaborator could not be reached
	ErrUnavailable = errors.New("dependency unavailable")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }
