package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates application errors. It is the only thing the transport
// layer inspects when choosing a status code.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindMissingToken
	KindInvalidSignature
	KindExpired
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidCredentials
	KindStorage
	KindConfig
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindValidation:         "validation",
	KindMissingToken:       "missing_token",
	KindInvalidSignature:   "invalid_signature",
	KindExpired:            "expired",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindInvalidCredentials: "invalid_credentials",
	KindStorage:            "storage",
	KindConfig:             "config",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsAuth reports whether k is one of the authentication failures (401 family).
func (k Kind) IsAuth() bool {
	switch k {
	case KindMissingToken, KindInvalidSignature, KindExpired, KindUnauthorized:
		return true
	}
	return false
}

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any

	// Err is the underlying cause. It is logged, never rendered to clients.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindExpired}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf returns the Kind carried by err. Errors that are not *Error are
// treated as storage failures: they originate below the app layer.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a field-level validation error. fields maps the JSON field
// name to a human readable message.
func Validation(message string, fields map[string]string) *Error {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return &Error{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Storage wraps an unexpected persistence or hashing failure.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Code: "SERVICE_UNAVAILABLE", Message: "service temporarily unavailable", Err: err}
}
