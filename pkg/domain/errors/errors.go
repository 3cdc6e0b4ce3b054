package errors

import (
	stderrors "errors"
	"fmt"
)

// Error represents a structured error with code and context
type Error struct {
	Code    Code
	Domain  string
	Message string
	Cause   error
}

// New creates a new error with the given code, domain, message, and optional cause
func New(code Code, domain string, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Domain:  domain,
		Message: message,
		Cause:   cause,
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code Code, domain string, format string, args ...interface{}) *Error {
	return New(code, domain, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Domain, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Domain, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Detail is the client-facing text: the message, followed by the cause when
// present. Nested *Error causes contribute their own Detail, without the
// domain and code prefix.
func (e *Error) Detail() string {
	if e.Cause == nil {
		return e.Message
	}
	var inner *Error
	if stderrors.As(e.Cause, &inner) {
		return e.Message + ": " + inner.Detail()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return stderrors.Is(err, &Error{Code: code})
}

// DetailOf returns the Detail of the first *Error in err's chain, or
// err.Error() for plain errors.
func DetailOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Detail()
	}
	return err.Error()
}
