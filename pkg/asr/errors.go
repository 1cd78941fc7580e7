package asr

import (
	"errors"
	"fmt"
	"net"
)

// Error is the error type returned by every recognizer operation and passed
// to OnFail.
type Error struct {
	Kind    ErrorKind
	Message string
	// Code carries the service status code for server-reported failures.
	Code int
	// VoiceID identifies the session the error belongs to, when known.
	VoiceID string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code: %d)", e.Kind, e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind categorizes recognizer errors.
type ErrorKind string

const (
	ErrInvalidParam   ErrorKind = "invalid_param"
	ErrConnectFailed  ErrorKind = "connect_failed"
	ErrWriteFailed    ErrorKind = "write_failed"
	ErrReadFailed     ErrorKind = "read_failed"
	ErrAuthFailed     ErrorKind = "auth_failed"
	ErrTimeout        ErrorKind = "timeout"
	ErrServerError    ErrorKind = "server_error"
	ErrAlreadyStarted ErrorKind = "already_started"
	ErrNotStarted     ErrorKind = "not_started"
	ErrAlreadyStopped ErrorKind = "already_stopped"
)

// NewInvalidParamError creates a caller-misuse error. It is never retried.
func NewInvalidParamError(message string) *Error {
	return &Error{
		Kind:    ErrInvalidParam,
		Message: message,
	}
}

// NewConnectFailedError creates a handshake or transport-open error.
func NewConnectFailedError(message string, err error) *Error {
	return &Error{
		Kind:    ErrConnectFailed,
		Message: message,
		Err:     err,
	}
}

// NewWriteFailedError creates a frame-send error.
func NewWriteFailedError(message string, err error) *Error {
	return &Error{
		Kind:    ErrWriteFailed,
		Message: message,
		Err:     err,
	}
}

// NewReadFailedError creates an inbound-payload or connection-loss error.
func NewReadFailedError(message string, err error) *Error {
	return &Error{
		Kind:    ErrReadFailed,
		Message: message,
		Err:     err,
	}
}

// NewAuthFailedError creates a token-derivation error.
func NewAuthFailedError(message string, err error) *Error {
	return &Error{
		Kind:    ErrAuthFailed,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates a bounded-wait-exceeded error.
func NewTimeoutError(message string) *Error {
	return &Error{
		Kind:    ErrTimeout,
		Message: message,
	}
}

// NewServerError creates an error from a non-zero service status code.
func NewServerError(code int, message, voiceID string) *Error {
	return &Error{
		Kind:    ErrServerError,
		Message: message,
		Code:    code,
		VoiceID: voiceID,
	}
}

// NewAlreadyStartedError creates the error returned when start is called on
// a session that already left the idle state.
func NewAlreadyStartedError() *Error {
	return &Error{
		Kind:    ErrAlreadyStarted,
		Message: "session already started",
	}
}

// NewNotStartedError creates the error returned when op requires a running
// session.
func NewNotStartedError(op string) *Error {
	return &Error{
		Kind:    ErrNotStarted,
		Message: op + " requires a running session",
	}
}

// NewAlreadyStoppedError creates the error returned when a single-use
// session is started again after it stopped.
func NewAlreadyStoppedError() *Error {
	return &Error{
		Kind:    ErrAlreadyStopped,
		Message: "session already stopped",
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsTimeout reports whether err was ultimately caused by a deadline, such as
// a frame write exceeding the session write timeout.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrTimeout {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
