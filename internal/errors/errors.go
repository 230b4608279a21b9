// Package errors defines the failure taxonomy shared by repositories,
// services and transports.
package errors

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindTransient
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error carries the operation and offending id so callers can decide on retry.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Op, msg, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether blindly retrying the same call may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient || e.Kind == KindRateLimited }

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func Unauthorized(op, id, msg string) error {
	return &Error{Kind: KindAuthorization, Op: op, ID: id, Msg: msg}
}

func NotFound(op, id, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Msg: msg}
}

func Conflict(op, id string, err error) error {
	return &Error{Kind: KindConflict, Op: op, ID: id, Msg: "conflicting write", Err: err}
}

func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Msg: "store unavailable", Err: err}
}

func RateLimited(op, id string) error {
	return &Error{Kind: KindRateLimited, Op: op, ID: id, Msg: "too many requests"}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Map converts repo/infra errors into typed errors. Already typed errors
// pass through untouched.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Op: op, Msg: "record not found", Err: err}

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict(op, "", err)

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransient, Op: op, Msg: "request timed out", Err: err}

	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTransient, Op: op, Msg: "request was canceled", Err: err}

	default:
		return Transient(op, err)
	}
}

// IsDuplicateKey reports a unique-constraint violation. Requires the gorm
// handle to be opened with TranslateError.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
