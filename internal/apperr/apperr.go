// Package apperr defines the typed error taxonomy shared by every component.
// Components return these types (or wrap them with fmt.Errorf("...: %w", ...));
// only the HTTP edge (internal/httpapi) translates them into status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which bucket of the taxonomy an error belongs to.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindDuplicateContent Kind = "duplicate_content"
	KindNotFound         Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindProvider         Kind = "provider"
	KindStore            Kind = "store"
)

// Error is the common shape for every typed application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation reports a malformed or disallowed request.
func Validation(msg string) error {
	return newErr(KindValidation, msg, nil)
}

// Validationf is Validation with fmt.Sprintf-style formatting.
func Validationf(format string, args ...any) error {
	return newErr(KindValidation, fmt.Sprintf(format, args...), nil)
}

// DuplicateContent reports an upload whose content hash already exists.
// existingID is carried on Message so the caller can surface the identifier
// it collapsed to without a type assertion.
func DuplicateContent(existingID string) error {
	return newErr(KindDuplicateContent, existingID, nil)
}

// NotFound reports a missing identifier.
func NotFound(msg string) error {
	return newErr(KindNotFound, msg, nil)
}

// InvalidTransition reports a rejected document status transition.
func InvalidTransition(from, to string) error {
	return newErr(KindInvalidTransition, fmt.Sprintf("cannot transition from %q to %q", from, to), nil)
}

// Provider wraps an embedding/chat provider failure.
func Provider(msg string, err error) error {
	return newErr(KindProvider, msg, err)
}

// Store wraps a persistence failure.
func Store(msg string, err error) error {
	return newErr(KindStore, msg, err)
}

// Is reports whether the first *Error in err's chain has the given Kind.
// An *Error wrapped inside another *Error is not consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err does not
// wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
