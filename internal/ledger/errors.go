package ledger

import (
	"errors"
	"fmt"
)

// Error is the structured error returned by every ledger subsystem.
//
// Kinds:
//   - Configuration: missing sync folder, unknown peer handle, bad config file
//   - Protocol: malformed or out-of-order sync messages, workspace mismatch
//   - Rejected: the peer refused the sync session
//   - Data: corrupt snapshot lines or invalid records
//
// I/O and database failures are not wrapped in Error; they surface as
// plain wrapped errors.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Op names the operation that failed, e.g. "import snapshot".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes ledger errors.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "CONFIGURATION"
	KindProtocol      ErrorKind = "PROTOCOL"
	KindRejected      ErrorKind = "REJECTED"
	KindData          ErrorKind = "DATA"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates an Error of kind KindConfiguration.
func NewConfigurationError(op, message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message, Err: err}
}

// NewProtocolError creates an Error of kind KindProtocol.
func NewProtocolError(op, message string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: message, Err: err}
}

// NewRejectedError creates an Error of kind KindRejected.
func NewRejectedError(op, message string) *Error {
	return &Error{Kind: KindRejected, Op: op, Message: message}
}

// NewDataError creates an Error of kind KindData.
func NewDataError(op, message string, err error) *Error {
	return &Error{Kind: KindData, Op: op, Message: message, Err: err}
}

func hasKind(err error, kind ErrorKind) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind == kind
	}
	return false
}

// IsConfigurationError reports whether err wraps a configuration error.
func IsConfigurationError(err error) bool { return hasKind(err, KindConfiguration) }

// IsProtocolError reports whether err wraps a protocol error.
func IsProtocolError(err error) bool { return hasKind(err, KindProtocol) }

// IsRejected reports whether err wraps a rejection by the peer.
func IsRejected(err error) bool { return hasKind(err, KindRejected) }

// IsDataError reports whether err wraps a data error.
func IsDataError(err error) bool { return hasKind(err, KindData) }
