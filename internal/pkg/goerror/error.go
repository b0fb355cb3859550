package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates that the requested resource could not be found.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates that the request could not be completed due to a conflict.
	ErrConflict = errors.New("resource conflict")
)

// Type classifies errors into high-level buckets used by the application.
type Type int

const (
	// TypeServer represents server-side failures.
	TypeServer Type = iota
	// TypeBusiness represents business rule violations.
	TypeBusiness
	// TypeValidation represents input validation failures.
	TypeValidation
)

var typeNames = map[Type]string{
	TypeServer:     "ERROR_TYPE_SERVER",
	TypeBusiness:   "ERROR_TYPE_BUSINESS",
	TypeValidation: "ERROR_TYPE_VALIDATION",
}

// String returns the string representation of the error type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "ERROR_TYPE_UNKNOWN"
}

// Code is a stable identifier used for mapping errors to HTTP status codes.
type Code int

const (
	// CodeInternal represents an internal or unspecified error.
	CodeInternal Code = iota
	// CodeInvalidFormat indicates a body that could not be decoded.
	CodeInvalidFormat
	// CodeInvalidInput indicates a decoded body that failed validation.
	CodeInvalidInput
	// CodeBadRequest indicates a request rejected by a business rule.
	CodeBadRequest
	// CodeUnauthorized indicates authentication failure.
	CodeUnauthorized
	// CodeUnavailable indicates a dependency is not reachable.
	CodeUnavailable
)

var codes = map[Code]struct {
	name   string
	status int
}{
	CodeInternal:      {"ERROR_CODE_INTERNAL", http.StatusInternalServerError},
	CodeInvalidFormat: {"ERROR_CODE_INVALID_FORMAT", http.StatusBadRequest},
	CodeInvalidInput:  {"ERROR_CODE_INVALID_INPUT", http.StatusUnprocessableEntity},
	CodeBadRequest:    {"ERROR_CODE_BAD_REQUEST", http.StatusBadRequest},
	CodeUnauthorized:  {"ERROR_CODE_UNAUTHORIZED", http.StatusUnauthorized},
	CodeUnavailable:   {"ERROR_CODE_UNAVAILABLE", http.StatusServiceUnavailable},
}

// String returns the string representation of the error code.
func (c Code) String() string {
	if def, ok := codes[c]; ok {
		return def.name
	}
	return codes[CodeInternal].name
}

// Error is a structured error used across the application.
//
// It can wrap an underlying error while also carrying a user-facing message,
// a high-level type, and a stable error code.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

// Error implements the error interface. The wrapped error wins over the
// user-facing message so logs keep the root cause.
func (e *Error) Error() string {
	switch {
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	case e.errType == TypeValidation:
		return "Validation violation"
	case e.errType == TypeBusiness:
		return "Logical business not meet with requirement"
	default:
		return "Internal error"
	}
}

// String returns a verbose representation of the error for debugging/logging.
func (e *Error) String() string {
	return fmt.Sprintf("Error Type: %s, Code: %s, Message: %s, Underlying Error: %v",
		e.errType, e.code, e.msg, e.err)
}

// Msg returns the user-facing error message, if set.
func (e *Error) Msg() string { return e.msg }

// Type returns the high-level error type.
func (e *Error) Type() Type { return e.errType }

// Code returns the stable error code.
func (e *Error) Code() Code { return e.code }

// Fields returns validation errors (field to message map), if any.
func (e *Error) Fields() map[string]string { return e.fields }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }

// StatusCode maps the error code to an HTTP status code. Unknown codes map
// to 500.
func (e *Error) StatusCode() int {
	if def, ok := codes[e.code]; ok {
		return def.status
	}
	return http.StatusInternalServerError
}

// NewServer creates a server-type error with the provided error.
func NewServer(err error) error {
	return &Error{err: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

// NewBusiness creates a business-type error with the specified message and code.
func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, errType: TypeBusiness, code: code}
}

// NewBusinessErr is NewBusiness that also wraps a domain sentinel, so callers
// can still match it with errors.Is.
func NewBusinessErr(err error, msg string, code Code) error {
	return &Error{err: err, msg: msg, errType: TypeBusiness, code: code}
}

// NewInvalidInput creates a validation error. With a non-nil err (usually a
// validator.V10ValidationError) it is wrapped; otherwise kv is read as
// field/message pairs, and an odd kv count yields an invalid format error.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return &Error{err: err, msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput}
	}

	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}

	return &Error{msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput, fields: fields}
}

// NewInvalidFormat creates a validation error for an invalid request body
// format. The first msg, when given, replaces the default message.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}
