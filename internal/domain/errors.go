// Package domain classifies the errors stores and handlers return so the
// HTTP layer can pick a status without knowing where they came from.
package domain

import "errors"

// Kind is the class of a failure as seen by a client.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindUnauthorized
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error tags Err with a Kind. Its message is the message of Err, which is
// what clients see for every kind except KindInternal.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func NewInvalidRequestError(err error) error {
	return &Error{Kind: KindInvalidRequest, Err: err}
}

func NewUnauthorizedError(err error) error {
	return &Error{Kind: KindUnauthorized, Err: err}
}

func NewNotFoundError(err error) error {
	return &Error{Kind: KindNotFound, Err: err}
}

func NewConflictError(err error) error {
	return &Error{Kind: KindConflict, Err: err}
}

func IsInvalidRequestError(err error) bool { return KindOf(err) == KindInvalidRequest }
func IsUnauthorizedError(err error) bool   { return KindOf(err) == KindUnauthorized }
func IsNotFoundError(err error) bool       { return KindOf(err) == KindNotFound }
func IsConflictError(err error) bool       { return KindOf(err) == KindConflict }
