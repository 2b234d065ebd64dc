package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a requested object does not exist or is hidden from the caller.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (nf NotFoundError) Error() string {
	return nf.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// PermissionError is returned when the caller is not allowed to perform an action.
type PermissionError struct {
	message string
}

func NewPermissionError(msg string) error {
	return &PermissionError{message: msg}
}

func (pe PermissionError) Error() string {
	return pe.message
}

func IsPermissionDenied(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

var ErrPermissionDenied = NewPermissionError("permission denied")

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
