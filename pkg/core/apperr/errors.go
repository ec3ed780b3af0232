// Package apperr defines the uniform error type returned by the coordinator.
//
// Every failure carries a Kind: validation errors are the caller's to fix and
// are surfaced verbatim, conflicts come from concurrent writers and are safe
// to retry, and storage errors mean the backing store misbehaved.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

// Error is the domain error type with structured metadata
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Kind != KindValidation {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message
func New(code Code, message string) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: message}
}

// Newf creates an error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithMetadata creates an error carrying identifiers of the offending rows
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error that wraps an underlying cause
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is matching by code
var (
	ErrCapacityExceeded  = New(CodeCapacityExceeded, "team is full")
	ErrInvalidLeader     = New(CodeInvalidLeader, "leader must be an active team member")
	ErrDanglingReference = New(CodeDanglingReference, "referenced entity does not exist")
	ErrUnauthorized      = New(CodeUnauthorized, "not authorized")
	ErrAlreadyMember     = New(CodeAlreadyMember, "already an active member")
	ErrInvalidValue      = New(CodeInvalidValue, "invalid value")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrNotMember         = New(CodeNotMember, "not an active member")
	ErrAlreadyApproved   = New(CodeAlreadyApproved, "activity already approved")
	ErrAlreadyExists     = New(CodeAlreadyExists, "already exists")
	ErrProjectClosed     = New(CodeProjectClosed, "project is closed")
	ErrInvalidTransition = New(CodeInvalidTransition, "invalid status transition")
	ErrInconsistent      = New(CodeInconsistentAccount, "account profiles do not match role")
	ErrReferenced        = New(CodeReferenced, "still referenced")
	ErrConflict          = New(CodeConflict, "concurrent modification")
	ErrStorage           = New(CodeStorage, "storage failure")
)

// FromStorage converts an error from the storage adapter into an *Error.
// Errors that are already *Error pass through unchanged.
func FromStorage(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return Wrap(CodeNotFound, "not found", err)
	case errors.Is(err, db.ErrAlreadyExists):
		return Wrap(CodeAlreadyExists, "already exists", err)
	case errors.Is(err, db.ErrReferenced):
		return Wrap(CodeReferenced, "still referenced by other rows", err)
	case errors.Is(err, db.ErrConflict):
		return Wrap(CodeConflict, "transaction conflicted with a concurrent request", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindStorage, Code: CodeStorage, Message: "request cancelled", Cause: err}
	}
	return Wrap(CodeStorage, "storage operation failed", err)
}

// CodeOf returns the code of the first *Error in err's chain
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified errors count as storage failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}
