package errors

import (
	"fmt"
)

// Contract violations. These are returned before any request is sent and are
// fixable by the caller without retrying.
var ErrInvalidArgument = fmt.Errorf("invalid argument")
var ErrUnsupportedType = fmt.Errorf("unsupported value type")
var ErrTransactionInProgress = fmt.Errorf("transaction already in progress")
var ErrTransactionClosed = fmt.Errorf("transaction is not active")

// Service failures. The operation was attempted and did not complete.
var ErrRequest = fmt.Errorf("request error")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrInternal = fmt.Errorf("internal error")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewInvalidArgumentError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrInvalidArgument,
	}
}

func NewInvalidExpressionError(expression string) error {
	return &myError{
		msg:    fmt.Sprintf("invalid expression: \"%s\"", expression),
		target: ErrInvalidArgument,
	}
}

func NewUnsupportedTypeError(value any) error {
	return &unsupportedTypeError{value: value}
}

type unsupportedTypeError struct {
	value any
}

func (e unsupportedTypeError) Error() string {
	return fmt.Sprintf("values of type %T can not be stored", e.value)
}

// Is reports both ErrUnsupportedType and ErrInvalidArgument so that callers
// can treat every contract violation the same way.
func (e unsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType || target == ErrInvalidArgument
}

func NewTransactionInProgressError(datasetID string) error {
	return &myError{
		msg:    fmt.Sprintf("connection already has an active transaction on dataset %s", datasetID),
		target: ErrTransactionInProgress,
	}
}

func NewTransactionClosedError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrTransactionClosed,
	}
}

// RequestFailedError is returned when the service answers with anything but
// 200 OK. Body holds the raw response payload for diagnostics.
type RequestFailedError struct {
	Method     string
	StatusCode int
	Body       []byte
}

func NewRequestFailedError(method string, code int, body []byte) *RequestFailedError {
	return &RequestFailedError{
		Method:     method,
		StatusCode: code,
		Body:       body,
	}
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request failed. %s returned status code %d: %s", e.Method, e.StatusCode, string(e.Body))
}

func (e *RequestFailedError) Is(target error) bool {
	return target == ErrRequest
}
