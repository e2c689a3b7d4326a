package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures by how they should be handled.
type ErrorKind int

const (
	// KindUnauthorized: expired or invalid credentials. Not retried; the
	// remaining jobs of the account are abandoned.
	KindUnauthorized ErrorKind = iota
	// KindForbiddenPermanent: permission denied or quota exhausted. Not
	// retried; the job fails (or the resource is skipped when listing).
	KindForbiddenPermanent
	// KindForbiddenTransient: rate limited. Retried with backoff.
	KindForbiddenTransient
	// KindBadRequest: malformed query or configuration. Not retried.
	KindBadRequest
	// KindServiceUnavailable: remote server error. Retried, then surfaced.
	KindServiceUnavailable
	// KindNotFound: a referenced account or dataset does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbiddenPermanent:
		return "forbidden"
	case KindForbiddenTransient:
		return "rate_limited"
	case KindBadRequest:
		return "bad_request"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// ExtractionError is a classified failure of an extraction operation.
// Failures that are not ExtractionErrors (local I/O, storage) are treated as
// fatal to the whole run.
type ExtractionError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ExtractionError) Retryable() bool {
	return e.Kind == KindForbiddenTransient || e.Kind == KindServiceUnavailable
}

// NewError builds a classified extraction error.
func NewError(kind ErrorKind, format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is an ExtractionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *ExtractionError
	return errors.As(err, &e) && e.Kind == kind
}

// AsExtractionError extracts the classified error, if any.
func AsExtractionError(err error) (*ExtractionError, bool) {
	var e *ExtractionError
	ok := errors.As(err, &e)
	return e, ok
}
