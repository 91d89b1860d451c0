package response

import (
	"errors"
)

type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap keeps the sentinel's code and message while carrying cause for logs.
func Wrap(sentinel error, cause error) error {
	var e *Error
	if !errors.As(sentinel, &e) || cause == nil {
		return sentinel
	}
	return &wrapped{sentinel: e, cause: cause}
}

type wrapped struct {
	sentinel *Error
	cause    error
}

func (w *wrapped) Error() string {
	return w.sentinel.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.sentinel, w.cause}
}

func (w *wrapped) Cause() error {
	return w.cause
}

type Success struct {
	Data any `json:"data"`
}

type Failure struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Details  string `json:"details,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
	Attempts any    `json:"attempts,omitempty"`
}
