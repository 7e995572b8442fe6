package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/matryer/is"
)

func TestRequestFailedErrorIsRequestError(t *testing.T) {
	is := is.New(t)

	err := fmt.Errorf("lookup failed: %w", NewRequestFailedError("lookup", http.StatusForbidden, []byte("denied")))

	is.True(errors.Is(err, ErrRequest))
	is.True(!errors.Is(err, ErrInvalidArgument))

	var rfe *RequestFailedError
	is.True(errors.As(err, &rfe))
	is.Equal(rfe.StatusCode, http.StatusForbidden)
	is.Equal(string(rfe.Body), "denied")
}

func TestUnsupportedTypeIsAContractViolation(t *testing.T) {
	is := is.New(t)

	err := NewUnsupportedTypeError([]string{})

	is.True(errors.Is(err, ErrUnsupportedType))
	is.True(errors.Is(err, ErrInvalidArgument))
	is.True(!errors.Is(err, ErrRequest))
	is.Equal(err.Error(), "values of type []string can not be stored")
}

func TestInvalidExpression(t *testing.T) {
	is := is.New(t)

	err := NewInvalidExpressionError("age")

	is.True(errors.Is(err, ErrInvalidArgument))
	is.Equal(err.Error(), "invalid expression: \"age\"")
}
