// Package syncerr defines the error taxonomy shared by the tiny-sync job.
//
// Every failure surfaced by the orchestrator is an *Error carrying a Kind.
// Callers match on kinds with errors.Is against the exported sentinels:
//
//	if errors.Is(err, syncerr.ErrRateLimitExceeded) { ... }
//
// An Authentication error is a specialised remote error, so it also matches
// ErrRemote.
package syncerr

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Kind classifies a sync failure
type Kind string

const (
	// KindConfiguration means the ERP credential is missing or malformed
	KindConfiguration Kind = "configuration"

	// KindValidation means the request itself is malformed
	KindValidation Kind = "validation"

	// KindUnauthorized means no caller identity could be resolved
	KindUnauthorized Kind = "unauthorized"

	// KindRateLimitExceeded means the per-invocation call budget is spent
	KindRateLimitExceeded Kind = "rate_limit_exceeded"

	// KindRemoteUnavailable means the ERP failed at the transport level
	KindRemoteUnavailable Kind = "remote_unavailable"

	// KindRemote means the ERP answered but reported an application error
	KindRemote Kind = "remote_error"

	// KindAuthentication means the ERP rejected the configured credential
	KindAuthentication Kind = "authentication"

	// KindConflict means another run for the same entity holds the run lock
	KindConflict Kind = "conflict"

	// KindStorage means the local data store failed
	KindStorage Kind = "storage"
)

// Operator-facing messages. The settings screen matches on these two to
// point the operator at the token reconfiguration flow.
const (
	MsgTokenNotConfigured = "ERP token not configured"
	MsgTokenInvalidFormat = "ERP token has invalid format: expected 64 hexadecimal characters"
	MsgBudgetExhausted    = "call budget exhausted; narrow filters or retry later"
)

// Sentinels for errors.Is matching
var (
	ErrConfiguration     = errors.New(string(KindConfiguration))
	ErrValidation        = errors.New(string(KindValidation))
	ErrUnauthorized      = errors.New(string(KindUnauthorized))
	ErrRateLimitExceeded = errors.New(string(KindRateLimitExceeded))
	ErrRemoteUnavailable = errors.New(string(KindRemoteUnavailable))
	ErrRemote            = errors.New(string(KindRemote))
	ErrAuthentication    = errors.New(string(KindAuthentication))
	ErrConflict          = errors.New(string(KindConflict))
	ErrStorage           = errors.New(string(KindStorage))
)

var sentinels = map[Kind]error{
	KindConfiguration:     ErrConfiguration,
	KindValidation:        ErrValidation,
	KindUnauthorized:      ErrUnauthorized,
	KindRateLimitExceeded: ErrRateLimitExceeded,
	KindRemoteUnavailable: ErrRemoteUnavailable,
	KindRemote:            ErrRemote,
	KindAuthentication:    ErrAuthentication,
	KindConflict:          ErrConflict,
	KindStorage:           ErrStorage,
}

// Error is a classified sync failure
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP status returned by the ERP, set for
	// KindRemoteUnavailable when a response was received
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *Error) Is(target error) bool {
	if target == sentinels[e.Kind] {
		return true
	}
	return e.Kind == KindAuthentication && target == ErrRemote
}

// LogExcerptLimit caps the error text written to a log line
const LogExcerptLimit = 200

// Excerpt returns the message of err cut to LogExcerptLimit runes. ERP
// messages are copied from remote bodies and have no length bound.
func Excerpt(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if utf8.RuneCountInString(msg) <= LogExcerptLimit {
		return msg
	}
	return string([]rune(msg)[:LogExcerptLimit]) + "..."
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Configuration builds a KindConfiguration error
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Validation builds a KindValidation error
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a KindUnauthorized error
func Unauthorized(message string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Err: err}
}

// RateLimitExceeded builds the budget exhaustion error
func RateLimitExceeded(maxCalls int) *Error {
	return &Error{
		Kind:    KindRateLimitExceeded,
		Message: fmt.Sprintf("%s (max %d calls per invocation)", MsgBudgetExhausted, maxCalls),
	}
}

// RemoteUnavailable builds a transport failure. statusCode is 0 when no
// response was received at all.
func RemoteUnavailable(statusCode int, err error) *Error {
	msg := "ERP unavailable"
	if statusCode != 0 {
		msg = fmt.Sprintf("ERP unavailable: HTTP %d", statusCode)
	}
	return &Error{Kind: KindRemoteUnavailable, Message: msg, StatusCode: statusCode, Err: err}
}

// Remote builds an application-level ERP error
func Remote(message string) *Error {
	return &Error{Kind: KindRemote, Message: message}
}

// Authentication builds an ERP credential rejection
func Authentication(providerMessage string) *Error {
	return &Error{
		Kind: KindAuthentication,
		Message: fmt.Sprintf(
			"ERP rejected the API token (%s); reconfigure the token in settings", providerMessage),
	}
}

// Conflict builds a run lock conflict
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Storage wraps a data store failure
func Storage(operation string, err error) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf("data store %s failed: %v", operation, err), Err: err}
}
