// Package goerror carries the relay's caller-facing errors. The router turns
// an *Error into the JSON error body and status code.
package goerror

import (
	"fmt"
	"net/http"
)

// Type tells the router how much of the error it may show to the caller.
type Type int

const (
	// TypeServer errors hide the cause; only Msg, when set, reaches the caller.
	TypeServer Type = iota
	// TypeBusiness errors are submissions refused by a relay rule.
	TypeBusiness
	// TypeValidation errors are malformed or invalid request data.
	TypeValidation
)

var typeNames = map[Type]string{
	TypeServer:     "server",
	TypeBusiness:   "business",
	TypeValidation: "validation",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Code selects the HTTP status of the response.
type Code int

const (
	CodeInternal Code = iota
	// CodeInvalidFormat is a body that cannot be parsed, or a file the upload
	// rules refuse.
	CodeInvalidFormat
	// CodeInvalidInput is a parsed submission that fails field validation.
	CodeInvalidInput
	// CodeRejected is a submission dropped by the honeypot.
	CodeRejected
	// CodePayloadTooLarge is a body, field or file over its size limit.
	CodePayloadTooLarge
)

var codes = map[Code]struct {
	name   string
	status int
}{
	CodeInternal:        {"ERROR_CODE_INTERNAL", http.StatusInternalServerError},
	CodeInvalidFormat:   {"ERROR_CODE_INVALID_FORMAT", http.StatusBadRequest},
	CodeInvalidInput:    {"ERROR_CODE_INVALID_INPUT", http.StatusBadRequest},
	CodeRejected:        {"ERROR_CODE_REJECTED", http.StatusBadRequest},
	CodePayloadTooLarge: {"ERROR_CODE_PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge},
}

func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return codes[CodeInternal].name
}

// Error is a relay error. Msg and Detail are safe to show to the submitter.
// The wrapped error is for logs only.
type Error struct {
	err     error
	msg     string
	detail  string
	errType Type
	code    Code
}

func (e *Error) Error() string {
	switch {
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	default:
		return e.errType.String() + " error"
	}
}

// String is the log form of the error.
func (e *Error) String() string {
	return fmt.Sprintf("%s/%s: msg=%q detail=%q cause=%v", e.errType, e.code, e.msg, e.detail, e.err)
}

func (e *Error) Msg() string    { return e.msg }
func (e *Error) Detail() string { return e.detail }
func (e *Error) Type() Type     { return e.errType }
func (e *Error) Code() Code     { return e.code }
func (e *Error) Unwrap() error  { return e.err }

// StatusCode is the HTTP status the router writes for this error.
func (e *Error) StatusCode() int {
	if info, ok := codes[e.code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// NewServer wraps a dependency failure, such as SMTP or disk. Without msg
// the caller gets the generic internal error text.
func NewServer(err error, msg ...string) error {
	return &Error{err: err, msg: first(msg), errType: TypeServer, code: CodeInternal}
}

// NewBusiness refuses a submission with msg and an optional detail line.
func NewBusiness(msg string, code Code, detail ...string) error {
	return &Error{msg: msg, detail: first(detail), errType: TypeBusiness, code: code}
}

// NewInvalidInput carries the field violations in err.
func NewInvalidInput(err error) error {
	return &Error{err: err, msg: "Invalid request data", errType: TypeValidation, code: CodeInvalidInput}
}

// NewInvalidFormat reports a body that could not be decoded.
func NewInvalidFormat(msg ...string) error {
	m := first(msg)
	if m == "" {
		m = "Invalid request body"
	}
	return &Error{msg: m, errType: TypeValidation, code: CodeInvalidFormat}
}
