package core

// errors.go defines the error taxonomy shared by every layer.
//
// Services return *Error values carrying a Kind; the web layer turns the
// Kind into an HTTP status and the Message into the response body.
// Infrastructure failures keep their technical cause in Err so it can be
// logged, while Message stays generic.

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindConflict
	KindUnauthenticated
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindTimeout
	KindBusy
)

var kindNames = map[Kind]string{
	KindInfrastructure:  "infrastructure",
	KindValidation:      "validation",
	KindConflict:        "conflict",
	KindUnauthenticated: "unauthenticated",
	KindUnauthorized:    "unauthorized",
	KindForbidden:       "forbidden",
	KindNotFound:        "not_found",
	KindTimeout:         "timeout",
	KindBusy:            "busy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified error with a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed or missing input.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Conflict reports a duplicate unique key.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Unauthenticated reports a missing, malformed, expired or revoked token.
func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Unauthorized reports credentials that do not match.
func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Forbidden reports a valid identity lacking the required role.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Timeout reports work abandoned after its deadline.
func Timeout(msg string, err error) error {
	return &Error{Kind: KindTimeout, Message: msg, Err: err}
}

// Busy reports that no worker slot became free in time.
func Busy(msg string, err error) error {
	return &Error{Kind: KindBusy, Message: msg, Err: err}
}

// Infrastructure wraps a storage, hashing or signing failure. msg is what
// the client sees; err is only logged.
func Infrastructure(msg string, err error) error {
	return &Error{Kind: KindInfrastructure, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInfrastructure when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// MessageOf returns the client-safe message of the first *Error in err's
// chain, or fallback when err is not classified.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
