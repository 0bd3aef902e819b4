package report

import (
	"github.com/pkg/errors"
)

// The 'error' type.
type Error struct {
	ErrorId string
	Message string
	Args    []any
	cause   error
}

type ErrorCreator struct {
	Message     func(args ...any) string
	Explanation func(args ...any) string
}

// CreateErr makes an error from its identifier. It panics on an identifier missing from the
// ErrorCreatorMap, since that can only be a mistake in this codebase.
func CreateErr(errorId string, args ...any) *Error {
	creator, ok := ErrorCreatorMap[errorId]
	if !ok {
		panic("report: no error with identifier '" + errorId + "'")
	}
	return &Error{ErrorId: errorId, Message: creator.Message(args...), Args: args}
}

// WrapErr is CreateErr with an underlying cause.
func WrapErr(cause error, errorId string, args ...any) *Error {
	e := CreateErr(errorId, args...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Explain returns the long-form explanation attached to the error's identifier.
func (e *Error) Explain() string {
	return ErrorCreatorMap[e.ErrorId].Explanation(e.Args...)
}

// Is reports whether any error in err's chain is a report error with the given identifier.
func Is(err error, errorId string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.ErrorId == errorId {
			return true
		}
		err = e.cause
	}
	return false
}
