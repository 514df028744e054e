// Package apperr defines the error taxonomy shared by the upload, retrieval and
// account services. Handlers map these types to HTTP statuses; everything else
// treats them as ordinary errors matched with errors.As.
package apperr

import "fmt"

// Kinds of missing things reported by NotFoundError.
const (
	KindUser    = "user"
	KindFile    = "file"
	KindContent = "content"
)

// ValidationError is returned when a request is rejected before any side effect.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

// NotFoundError is returned for unknown users, unknown files, and files whose
// metadata record survived while the bytes on disk did not (KindContent).
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	switch e.Kind {
	case KindUser:
		return "user not found"
	case KindContent:
		return "file content missing"
	default:
		return "file not found"
	}
}

// ConflictError is returned when a unique constraint rejects a creation.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	return e.Reason
}

// AuthError is returned on any credential mismatch. It never says which part was wrong.
type AuthError struct{}

func (AuthError) Error() string {
	return "invalid credentials"
}

// StorageError wraps filesystem and database failures.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// IntegrityError wraps a failure to compute or verify a content digest.
type IntegrityError struct {
	Path string
	Err  error
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %v", e.Path, e.Err)
}

func (e IntegrityError) Unwrap() error {
	return e.Err
}
