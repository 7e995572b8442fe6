package storage

import "fmt"

type AlreadyExistsError struct {
	msg string
}

func NewAlreadyExistsError(msg string) AlreadyExistsError {
	return AlreadyExistsError{msg: msg}
}

func (aee AlreadyExistsError) Error() string {
	return aee.msg
}

type InvalidRequestError struct {
	msg string
}

func NewInvalidRequestError(msg string) InvalidRequestError {
	return InvalidRequestError{msg: msg}
}

func (ire InvalidRequestError) Error() string {
	return ire.msg
}

type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) NotFoundError {
	return NotFoundError{msg: msg}
}

func (nfe NotFoundError) Error() string {
	return nfe.msg
}

type UnknownTransactionError struct {
	handle string
}

func NewUnknownTransactionError(handle []byte) UnknownTransactionError {
	return UnknownTransactionError{handle: string(handle)}
}

func (ute UnknownTransactionError) Error() string {
	return fmt.Sprintf("unknown transaction \"%s\"", ute.handle)
}
