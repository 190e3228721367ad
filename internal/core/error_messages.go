package core

// error_messages.go assigns support codes to errors.
//
// Client responses carry only the message; the code is written to the log
// line for the same request so support staff can correlate a user report
// with the technical cause.
//
// # Classified errors
//
//	AUTH001 - validation: malformed signup or login input
//	AUTH002 - conflict: email already registered
//	AUTH003 - unauthenticated: token missing, malformed, expired or revoked
//	AUTH004 - unauthorized: credentials do not match
//	AUTH005 - forbidden: role not permitted
//	AUTH006 - not found: account referenced by a token is gone
//	UPL001  - validation: upload rejected or unreadable
//	UPL002  - timeout: parse abandoned after its deadline
//	SYS001  - busy: no worker slot became free in time
//
// # Infrastructure causes (matched on the wrapped error text)
//
//	DB001 - connection refused
//	DB002 - connection reset
//	DB003 - deadlock
//	DB004 - timeout
//	RDS001 - redis failure
//	TOK001 - token signing failure
//	HSH001 - password hashing failure
//	ERR000 - anything else; check the log for the original error

import (
	"errors"
	"strings"
)

// UserMessage pairs a client-safe message with a support code.
type UserMessage struct {
	Message string
	Code    string
}

type errorPattern struct {
	pattern string
	code    string
}

// Order matters: the first match wins.
var infraPatterns = []errorPattern{
	{pattern: "connection refused", code: "DB001"},
	{pattern: "connection reset", code: "DB002"},
	{pattern: "deadlock", code: "DB003"},
	{pattern: "redis", code: "RDS001"},
	{pattern: "redigo", code: "RDS001"},
	{pattern: "sign token", code: "TOK001"},
	{pattern: "bcrypt", code: "HSH001"},
	{pattern: "hash password", code: "HSH001"},
	{pattern: "timeout", code: "DB004"},
	{pattern: "deadline exceeded", code: "DB004"},
}

const defaultCode = "ERR000"

const defaultMessage = "An unexpected error occurred"

// MapError returns the client message and support code for err.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if !errors.As(err, &e) {
		return UserMessage{Message: defaultMessage, Code: patternCode(err)}
	}

	msg := e.Message
	if msg == "" {
		msg = defaultMessage
	}

	switch e.Kind {
	case KindValidation:
		if isUploadCause(e.Err) {
			return UserMessage{Message: msg, Code: "UPL001"}
		}
		return UserMessage{Message: msg, Code: "AUTH001"}
	case KindConflict:
		return UserMessage{Message: msg, Code: "AUTH002"}
	case KindUnauthenticated:
		return UserMessage{Message: msg, Code: "AUTH003"}
	case KindUnauthorized:
		return UserMessage{Message: msg, Code: "AUTH004"}
	case KindForbidden:
		return UserMessage{Message: msg, Code: "AUTH005"}
	case KindNotFound:
		return UserMessage{Message: msg, Code: "AUTH006"}
	case KindTimeout:
		return UserMessage{Message: msg, Code: "UPL002"}
	case KindBusy:
		return UserMessage{Message: msg, Code: "SYS001"}
	default:
		if e.Err == nil {
			return UserMessage{Message: msg, Code: defaultCode}
		}
		return UserMessage{Message: msg, Code: patternCode(e.Err)}
	}
}

func patternCode(err error) string {
	errStr := strings.ToLower(err.Error())
	for _, ep := range infraPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.code
		}
	}
	return defaultCode
}

// ErrUpload marks validation errors raised by the upload pipeline.
var ErrUpload = errors.New("upload rejected")

func isUploadCause(err error) bool {
	return err != nil && errors.Is(err, ErrUpload)
}

// UploadRejected builds a validation error tagged as upload-origin.
func UploadRejected(msg string) error {
	return &Error{Kind: KindValidation, Message: msg, Err: ErrUpload}
}
