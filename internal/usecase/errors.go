package usecase

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrorSessionStart   ErrorCode = "SESSION_START_ERROR"
	ErrorTurnTransport  ErrorCode = "TURN_TRANSPORT_ERROR"
	ErrorServerReported ErrorCode = "SERVER_REPORTED_ERROR"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
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

// detail is the text shown to the user for a failed operation.
func detail(err error) string {
	var ue *Error
	if errors.As(err, &ue) {
		if ue.Err != nil {
			return ue.Err.Error()
		}
		return ue.Reason
	}
	return err.Error()
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// transportReason classifies a failed call to the bread API.
func transportReason(op string, err error) string {
	var sc httpStatusCoder
	switch {
	case errors.As(err, &sc):
		return fmt.Sprintf("%s_http_%d", op, sc.HTTPStatusCode())
	case errors.Is(err, context.DeadlineExceeded):
		return op + "_timeout"
	case errors.Is(err, context.Canceled):
		return op + "_canceled"
	default:
		return op + "_request_failed"
	}
}
