// Package apperr defines the error kinds surfaced by chore operations.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrRemote           = errors.New("remote operation failed")
)

// Error carries one of the sentinel kinds plus the failing operation.
// errors.Is(err, ErrNotFound) and friends match on Kind.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func NotFound(op, msg string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: msg}
}

func Validation(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: msg}
}

func PermissionDenied(op, msg string) error {
	return &Error{Kind: ErrPermissionDenied, Op: op, Msg: msg}
}

// Remote wraps a failed store call. Returns nil when err is nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrRemote, Op: op, Err: err}
}

// Message returns the user-facing message of an apperr.Error, or "" for
// anything else.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
