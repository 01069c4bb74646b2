package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies failures by how the scheduler must react to them.
type Kind string

const (
	KindConfig                  Kind = "config"
	KindAuth                    Kind = "auth"
	KindTransport               Kind = "transport"
	KindDataUnavailable         Kind = "data_unavailable"
	KindTextGenerationExhausted Kind = "text_generation_exhausted"
	KindValidation              Kind = "validation"
)

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) *Error    { return New(KindConfig, op, err) }
func Auth(op string, err error) *Error      { return New(KindAuth, op, err) }
func Transport(op string, err error) *Error { return New(KindTransport, op, err) }
func Unavailable(op string, err error) *Error {
	return New(KindDataUnavailable, op, err)
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the outermost kind in err's chain, or "" if unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsSetup reports whether err should be treated as a setup failure.
func IsSetup(err error) bool {
	return Is(err, KindConfig) || Is(err, KindAuth)
}
