// Package apperr is the error taxonomy shared by every domain package.
// Services return *Error values; HTTPErrorHandler translates them into the
// response envelope at the edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindInsufficientStock
	KindUnauthorized
	KindForbidden
	KindConflict
	KindExternal
)

var kindInfo = map[Kind]struct {
	code   string
	status int
}{
	KindInternal:          {"INTERNAL_ERROR", http.StatusInternalServerError},
	KindValidation:        {"VALIDATION_ERROR", http.StatusBadRequest},
	KindNotFound:          {"NOT_FOUND", http.StatusNotFound},
	KindInvalidState:      {"INVALID_STATE", http.StatusConflict},
	KindInsufficientStock: {"INSUFFICIENT_STOCK", http.StatusConflict},
	KindUnauthorized:      {"UNAUTHORIZED", http.StatusUnauthorized},
	KindForbidden:         {"FORBIDDEN", http.StatusForbidden},
	KindConflict:          {"CONFLICT", http.StatusConflict},
	KindExternal:          {"EXTERNAL_FAILURE", http.StatusBadGateway},
}

// Code is the stable machine-readable identifier rendered to clients.
func (k Kind) Code() string { return kindInfo[k].code }

func (k Kind) HTTPStatus() int { return kindInfo[k].status }

func (k Kind) String() string { return k.Code() }

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrExternal          = &Error{Kind: KindExternal}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newf(KindInvalidState, format, args...)
}

func InsufficientStock(format string, args ...interface{}) *Error {
	return newf(KindInsufficientStock, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// External wraps a failure of a downstream collaborator such as the SMS
// gateway.
func External(err error, format string, args ...interface{}) *Error {
	e := newf(KindExternal, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
