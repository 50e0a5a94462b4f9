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

// RequestError rejects a whole request before any work is done.
// Code is a stable, machine readable identifier, Message is meant for developers.
type RequestError struct {
	Code    string
	Message string
}

func NewRequestError(code, msg string) *RequestError {
	return &RequestError{Code: code, Message: msg}
}

func (err *RequestError) Error() string {
	return err.Message
}

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
