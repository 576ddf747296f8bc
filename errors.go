package graphstore

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by operations a backend cannot provide, such as
// rolling back an in-memory transaction.
var ErrUnsupported = errors.New("unsupported operation")

// ValidationError reports input rejected at construction time.
type ValidationError struct {
	Kind   string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Value, e.Reason)
}

// Error is the one error kind transactions return for backend failures: I/O,
// serialization, engine and constraint errors alike.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func NewError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Backend: backend, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
