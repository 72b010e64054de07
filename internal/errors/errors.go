// Package errors defines the failure taxonomy of the DeliHood client core.
// Every failure that crosses a package boundary is an *Error carrying a Kind,
// so callers can branch with errors.Is against the exported sentinels and the
// presentation layer can map each kind to one alert.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind string

const (
	KindMissingCredentials   Kind = "missing_credentials"
	KindRefreshExhausted     Kind = "refresh_exhausted"
	KindCannotRefresh        Kind = "cannot_refresh"
	KindPersistFailed        Kind = "persist_failed"
	KindEmailNotVerified     Kind = "email_not_verified"
	KindDuplicateValue       Kind = "duplicate_value"
	KindUnexpectedResponse   Kind = "unexpected_response"
	KindApplicationError     Kind = "application_error"
	KindWrongPasswordOrEmail Kind = "wrong_password_or_email"
	KindUserAlreadyExists    Kind = "user_already_exists"
	KindDecodeFailure        Kind = "decode_failure"
	KindNetwork              Kind = "network"
)

// Error is a classified client failure.
type Error struct {
	Kind       Kind
	Message    string
	Op         string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap provides access to the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind. A target with a Message only matches errors carrying
// the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Sentinels for errors.Is.
var (
	ErrMissingCredentials   = &Error{Kind: KindMissingCredentials}
	ErrRefreshExhausted     = &Error{Kind: KindRefreshExhausted}
	ErrCannotRefresh        = &Error{Kind: KindCannotRefresh}
	ErrPersistFailed        = &Error{Kind: KindPersistFailed}
	ErrEmailNotVerified     = &Error{Kind: KindEmailNotVerified}
	ErrDuplicateValue       = &Error{Kind: KindDuplicateValue}
	ErrUnexpectedResponse   = &Error{Kind: KindUnexpectedResponse}
	ErrApplication          = &Error{Kind: KindApplicationError}
	ErrWrongPasswordOrEmail = &Error{Kind: KindWrongPasswordOrEmail}
	ErrUserAlreadyExists    = &Error{Kind: KindUserAlreadyExists}
	ErrDecodeFailure        = &Error{Kind: KindDecodeFailure}
	ErrNetwork              = &Error{Kind: KindNetwork}
)

// New creates an error of the given kind.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Status creates an error of the given kind for an HTTP status code.
func Status(kind Kind, op string, code int) *Error {
	return &Error{Kind: kind, Op: op, StatusCode: code}
}

// Application is the business-logic failure the backend reports inside a
// 200 body.
func Application(op, message string) *Error {
	return &Error{Kind: KindApplicationError, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the application message carried by err, if any.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return ""
}
