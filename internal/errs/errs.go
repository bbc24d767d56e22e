// Package errs defines the stable wire error codes for the dose lifecycle
// engine and maps each to an HTTP status, per spec section 7.
package errs

import "fmt"

// Code is one of the stable wire error kinds.
type Code string

const (
	MissingCredentials Code = "missing-credentials"
	InvalidCredentials Code = "invalid-credentials"
	WrongDeviceKind    Code = "wrong-device-kind"
	DeviceOffline      Code = "device-offline"
	NotFound           Code = "not-found"
	Conflict           Code = "conflict"
	InvalidInput       Code = "invalid-input"
	IllegalTransition  Code = "illegal-transition"
	Internal           Code = "internal-error"
)

var httpStatus = map[Code]int{
	MissingCredentials: 401,
	InvalidCredentials: 401,
	WrongDeviceKind:    403,
	DeviceOffline:      503,
	NotFound:           404,
	Conflict:           409,
	InvalidInput:       400,
	IllegalTransition:  409,
	Internal:           500,
}

// Error is an application error carrying a stable code, an HTTP status, and
// an optional wrapped cause. Never format Cause into the message returned
// to a caller for Internal errors — log it instead.
type Error struct {
	Code    Code
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error for code with the given message, deriving the HTTP
// status from the code's fixed mapping.
func New(code Code, message string) *Error {
	return &Error{Code: code, Status: httpStatus[code], Message: message}
}

// Wrap builds an Error for code that also carries an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Status: httpStatus[code], Message: message, Cause: cause}
}

// As extracts *Error from err, returning nil, false if err is not one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// StatusOf returns the HTTP status to report for err, defaulting to 500 for
// any error that isn't a *Error.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return 500
}

// CodeOf returns the wire code for err, or Internal if err isn't a *Error.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return Internal
}
