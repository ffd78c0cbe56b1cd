package usecase

import (
	"errors"
	"fmt"

	"messenger-store/internal/repository"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorNotFound     ErrorCode = "NOT_FOUND"
	ErrorConflict     ErrorCode = "CONFLICT"
	ErrorUnavailable  ErrorCode = "UNAVAILABLE"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by every Service operation. Reason is a stable
// snake_case token the HTTP layer passes through to clients.
type Error struct {
	Code   ErrorCode
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "usecase: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// withOp stamps op on a usecase error leaving the named result of a Service
// method.
func withOp(op string, err *error) {
	var e *Error
	if *err != nil && errors.As(*err, &e) && e.Op == "" {
		e.Op = op
	}
}

// storeFailure maps a repository failure onto the usecase taxonomy.
func storeFailure(reason string, err error) *Error {
	code, _ := repository.CodeOf(err)
	switch code {
	case repository.ErrorInvalidArgument:
		return newError(ErrorInvalidInput, reason, err)
	case repository.ErrorUnavailable:
		return newError(ErrorUnavailable, reason, err)
	case repository.ErrorConflict:
		return newError(ErrorConflict, reason, err)
	default:
		return newError(ErrorInternal, reason, err)
	}
}
