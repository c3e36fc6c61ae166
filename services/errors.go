package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies a service error so handlers can pick a status code
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is an expected, client-facing failure of a service operation.
// Anything that is not an *Error is treated as an internal error.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a service *Error from err's chain
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a service error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == kind
}

func validationError(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: "Invalid request data",
		Fields:  map[string]string{field: message},
	}
}

func notFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func unavailable(code, message string) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Message: message}
}

// IsDuplicateKey detects unique index violations across MySQL, Postgres and SQLite
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
