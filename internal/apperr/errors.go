package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure so the HTTP layer can pick a status code
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindNoApplicableRate
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNoApplicableRate:
		return "no_applicable_rate"
	case KindValidation:
		return "validation_failed"
	default:
		return "unexpected"
	}
}

// Error is the typed failure returned by services and repositories
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a lookup by id that found nothing
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NoApplicableRate reports that no rate tier satisfies the requested rental length
func NoApplicableRate(format string, args ...any) *Error {
	return &Error{Kind: KindNoApplicableRate, Message: fmt.Sprintf(format, args...)}
}

// Validation reports structural or field-level violations
func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// Unexpected wraps a cause that carries no business meaning
func Unexpected(message string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: message, Err: err}
}

// KindOf returns the kind of err, KindUnexpected for foreign errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// Is reports whether err is an *Error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
