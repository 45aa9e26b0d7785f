package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable class of a failure
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation_error"
	KindConflict   ErrorKind = "conflict_error"
	KindStore      ErrorKind = "store_error"
)

// Sentinel errors, one per kind, for errors.Is checks.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store error")
)

// Error is a classified failure.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// Errorf builds an Error with a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind. An err that is already an *Error
// keeps its own kind.
func WrapError(kind ErrorKind, op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindStore:
		return ErrStore
	}
	return nil
}

// KindOf classifies any error. Unclassified errors count as store errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	}
	return KindStore
}

// ToOperationError converts err into its result form.
func ToOperationError(err error) OperationError {
	return OperationError{Kind: KindOf(err), Message: err.Error()}
}
