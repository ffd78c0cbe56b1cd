package repository

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type ErrorCode string

const (
	// ErrorUnavailable means the store could not serve the request: network
	// failure, timeout, throttling or a missing table.
	ErrorUnavailable     ErrorCode = "UNAVAILABLE"
	ErrorInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrorConflict means an optimistic write condition was lost to a
	// concurrent writer. The caller may re-read and retry.
	ErrorConflict    ErrorCode = "CONFLICT"
	ErrorCorruptItem ErrorCode = "CORRUPT_ITEM"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

// Error is the typed failure returned by every store operation.
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
	msg := fmt.Sprintf("repository: %s: %s", e.Op, e.Code)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
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

// CodeOf reports the ErrorCode carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Code, true
}

func invalidArgument(op, reason string) *Error {
	return &Error{Code: ErrorInvalidArgument, Op: op, Reason: reason}
}

func corruptItem(op string, err error) *Error {
	return &Error{Code: ErrorCorruptItem, Op: op, Err: err}
}

// storeError classifies a failed DynamoDB call.
func storeError(op string, err error) *Error {
	e := &Error{Code: ErrorUnavailable, Op: op, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Reason = apiErr.ErrorCode()
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		e.Code = ErrorConflict
		return e
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, r := range txErr.CancellationReasons {
			if aws.ToString(r.Code) == conditionalCheckFailed {
				e.Code = ErrorConflict
				break
			}
		}
	}
	return e
}
