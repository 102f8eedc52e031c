package grid

import "errors"

// StoreError represents a domain error from grid operations.
//
// These are business logic errors (file not found, bad mode token, wrong
// stream state) as opposed to infrastructure errors from the underlying
// document collections, which are wrapped under ErrCollaborator so the
// original cause stays reachable through errors.Unwrap.
//
// Callers branch on Code; Message and Name exist for logs and humans.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Name is the file name related to the error (if applicable)
	Name string

	// Err is the underlying cause for collaborator failures (if any)
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Name != "" {
		msg = msg + ": " + e.Name
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a grid error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: unknown mode token, negative seek target, zero chunk size
	ErrInvalidArgument

	// ErrInvalidOperation indicates the operation is not valid in the
	// stream's current state
	// Examples: writing to a read handle, resizing chunks after data landed
	ErrInvalidOperation

	// ErrCollaborator indicates an underlying document collection failed
	// The original error is reachable through errors.Unwrap
	ErrCollaborator
)

// notFound builds an ErrNotFound error for the named file.
func notFound(name string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: "file not found",
		Name:    name,
	}
}

// invalidArgument builds an ErrInvalidArgument error.
func invalidArgument(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// invalidOperation builds an ErrInvalidOperation error.
func invalidOperation(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidOperation,
		Message: message,
	}
}

// collaborator wraps a collection failure, preserving the cause.
func collaborator(message string, err error) *StoreError {
	return &StoreError{
		Code:    ErrCollaborator,
		Message: message,
		Err:     err,
	}
}

// codeOf extracts the ErrorCode from err, unwrapping as needed.
// Returns (0, false) when err carries no StoreError.
func codeOf(err error) (ErrorCode, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is an ErrNotFound grid error.
func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrNotFound
}

// IsInvalidArgument reports whether err is an ErrInvalidArgument grid error.
func IsInvalidArgument(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrInvalidArgument
}

// IsInvalidOperation reports whether err is an ErrInvalidOperation grid error.
func IsInvalidOperation(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrInvalidOperation
}

// IsCollaboratorFailure reports whether err is an ErrCollaborator grid error.
func IsCollaboratorFailure(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCollaborator
}
