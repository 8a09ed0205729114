package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrStorage         = errors.New("storage failure")
	ErrTooLarge        = errors.New("payload too large")
	ErrInternal        = errors.New("internal error")
)

// Error is a classified failure. Msg is safe to show to the caller; Err is for logs.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Unauthenticated(msg string) error { return &Error{Kind: ErrUnauthenticated, Msg: msg} }
func NotFound(format string, a ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, a...)}
}
func Forbidden(msg string) error { return &Error{Kind: ErrForbidden, Msg: msg} }
func Validation(format string, a ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, a...)}
}

// ValidationCause keeps the decoder error around for logging.
func ValidationCause(err error, format string, a ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, a...), Err: err}
}

func Storage(msg string, err error) error { return &Error{Kind: ErrStorage, Msg: msg, Err: err} }

// Message returns the client-facing text for err, hiding causes of
// storage and unclassified failures.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) && !errors.Is(de.Kind, ErrStorage) && !errors.Is(de.Kind, ErrInternal) {
		return de.Msg
	}
	if errors.Is(err, ErrStorage) {
		return "storage failure"
	}
	return "internal error"
}
