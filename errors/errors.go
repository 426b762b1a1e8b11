package errors

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
)

// DriverError is an error carrying one of the codes in this package, with a
// customizable error message.
type DriverError interface {
	error
	Code() Code
	Unwrap() error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type driverError struct {
	code          Code
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.code)
}

func (e driverError) Code() Code {
	return e.code
}

func (e driverError) Unwrap() error {
	return e.originalError
}

// Is makes two driver errors match if their codes are the same, regardless of
// their messages. [EndOfFile] additionally matches [io.EOF] so that files can
// be handed to code from the standard library.
func (e driverError) Is(target error) bool {
	if target == io.EOF {
		return e.code == EndOfFile
	}

	other, ok := target.(DriverError)
	if !ok {
		return false
	}
	return other.Code() == e.code
}

// WithMessage returns a copy of the error with `message` appended to the
// current message.
func (e driverError) WithMessage(message string) DriverError {
	return driverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e.originalError,
	}
}

// Wrap returns a copy of the error that also matches `err` under [errors.Is]
// and [errors.As].
func (e driverError) Wrap(err error) DriverError {
	return driverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e.originalError, err),
	}
}

// New creates a new [DriverError] with a default message derived from the
// error code.
func New(code Code) DriverError {
	return driverError{
		code:    code,
		message: StrError(code),
	}
}

// NewFromError creates a new [DriverError] that wraps another error.
func NewFromError(code Code, originalError error) DriverError {
	return New(code).Wrap(originalError)
}

// NewWithMessage creates a new DriverError from an error code with a custom
// message.
func NewWithMessage(code Code, message string) DriverError {
	return driverError{
		code:    code,
		message: fmt.Sprintf("%s: %s", StrError(code), message),
	}
}

// CodeOf returns the code of the first [DriverError] in the chain of `err`, or
// [OK] if there isn't one.
func CodeOf(err error) Code {
	var driverErr DriverError
	if stderrors.As(err, &driverErr) {
		return driverErr.Code()
	}
	return OK
}

// Ensure returns `err` unchanged if it already carries a code, otherwise wraps
// it in a new error with the given code.
func Ensure(code Code, err error) error {
	if err == nil || CodeOf(err) != OK {
		return err
	}
	return NewFromError(code, err)
}
