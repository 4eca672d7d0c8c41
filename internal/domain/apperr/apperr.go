// Package apperr defines the error kinds shared by the tenancy core, its
// stores, and the HTTP layer.
//
// Callers test kinds with errors.Is; the concrete *Error carries a
// human-readable message and the underlying cause.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrForbidden             = errors.New("forbidden")
	ErrValidation            = errors.New("validation failed")
	ErrMigrationVerification = errors.New("migration verification failed")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrInternal              = errors.New("internal store error")
)

// Store-level sentinels. These are not surfaced to clients directly; the
// tenancy layer translates them into one of the kinds above.
var (
	// ErrCollectionExists is returned by a tenant store when asked to create
	// a collection that is already present.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrStaleVersion is returned by the organization store when a guarded
	// update finds the record at a different version than expected.
	ErrStaleVersion = errors.New("organization was modified concurrently")
)

var kinds = []error{
	ErrNotFound,
	ErrConflict,
	ErrForbidden,
	ErrValidation,
	ErrMigrationVerification,
	ErrUnauthenticated,
	ErrInternal,
}

// Error is a classified error with a client-safe message.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind with a message.
func Wrap(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Internal wraps an unexpected store failure.
func Internal(cause error, op string) error {
	return &Error{Kind: ErrInternal, Msg: op, Err: cause}
}

// KindOf returns the kind err belongs to. Unclassified errors are internal.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// Message returns the client-facing message for err. Internal errors never
// expose their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	kind := KindOf(err)
	return kind.Error()
}

// Code returns the stable machine-readable code for err's kind.
func Code(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrForbidden:
		return "forbidden"
	case ErrValidation:
		return "validation_error"
	case ErrMigrationVerification:
		return "migration_verification_failed"
	case ErrUnauthenticated:
		return "unauthenticated"
	default:
		return "internal_error"
	}
}
