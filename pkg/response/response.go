package response

import (
	"errors"
)

type Error struct {
	Code  int
	Err   error
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Err.Error() + ": " + e.Cause.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code and message so a wrapped sentinel still compares equal
// to the sentinel itself.
func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{Code: code, Err: errors.New(err)}
}

// Wrap attaches cause to a sentinel created by NewError. The result keeps the
// sentinel's status code and unwraps to cause.
func Wrap(sentinel error, cause error) error {
	var r *Error
	if !errors.As(sentinel, &r) {
		return errors.Join(sentinel, cause)
	}
	return &Error{Code: r.Code, Err: r.Err, Cause: cause}
}
