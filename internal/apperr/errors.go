// Package apperr classifies ingestion failures so callers and the job store
// can tell deterministic rejections apart from infrastructure faults.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	ValidationError      Kind = "validation_error"
	AlreadyExists        Kind = "already_exists"
	UpstreamUnavailable  Kind = "upstream_unavailable"
	ContentUnextractable Kind = "content_unextractable"
	Rejected             Kind = "rejected"
	MalformedOutput      Kind = "malformed_output"
	InvocationError      Kind = "invocation_error"
	CommitError          Kind = "commit_error"
	Interrupted          Kind = "interrupted"
	Internal             Kind = "internal"
)

// Retryable reports whether re-running the same input could succeed.
// Nothing in this module retries automatically.
func (k Kind) Retryable() bool {
	switch k {
	case UpstreamUnavailable, MalformedOutput, InvocationError, CommitError, Interrupted, Internal:
		return true
	}
	return false
}

// Error carries a failure kind and a message that is safe to show to callers.
// Err holds the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// SafeMessage returns the caller-facing message for err. Unclassified errors
// never leak their text.
func SafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
