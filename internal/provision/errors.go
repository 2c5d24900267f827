package provision

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when a closed session is used or closed again.
var ErrSessionClosed = errors.New("session already closed")

// ErrorKind categorizes provisioning failures.
type ErrorKind string

const (
	// KindValidation indicates a malformed spec or a record body that
	// violates its kind's schema.
	KindValidation ErrorKind = "ValidationFailure"

	// KindNotFound indicates a lookup or parent reference that matched no
	// record, or matched more than one.
	KindNotFound ErrorKind = "NotFound"

	// KindSetup indicates the session could not be opened. Fatal.
	KindSetup ErrorKind = "SessionSetupFailure"

	// KindStore indicates an unexpected backend failure or cancellation.
	KindStore ErrorKind = "StoreFailure"
)

// Error is a provisioning failure with the record it concerns.
type Error struct {
	// Kind categorizes the failure.
	Kind ErrorKind

	// Record is the label of the affected RecordSpec, e.g.
	// `Company{company_name=Galaxy Bio}`. Empty for session errors.
	Record string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Record != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Record, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, record, message string, cause error) *Error {
	return &Error{Kind: kind, Record: record, Message: message, Err: cause}
}

// KindOf returns the ErrorKind of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsSetupFailure reports whether err is a session setup failure.
func IsSetupFailure(err error) bool {
	return KindOf(err) == KindSetup
}

// IsStoreFailure reports whether err is a backend failure.
func IsStoreFailure(err error) bool {
	return KindOf(err) == KindStore
}
