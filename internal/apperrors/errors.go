// Package apperrors defines the small set of error kinds a caller can
// receive. Parsing-strategy failures never appear here: they are retried
// in-process by the recovery chain and surface only as metadata.
package apperrors

import (
	"github.com/pkg/errors"
)

// Kind labels an error with one of the caller-visible categories.
type Kind string

const (
	// KindValidation marks a malformed inbound request. Fixed by the
	// caller, never retried.
	KindValidation Kind = "validation_error"

	// KindServiceUnavailable marks a missing LLM credential or key.
	KindServiceUnavailable Kind = "service_unavailable"

	// KindUpstreamFailure marks an LLM call that errored after all
	// key-rotation retries were exhausted.
	KindUpstreamFailure Kind = "upstream_failure"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates a kinded error with a caller-actionable message.
func New(kind Kind, message string) error {
	return &kindError{kind: kind, err: errors.New(message)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, message)}
}

// KindOf returns the kind of err, or "" if it carries none.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
