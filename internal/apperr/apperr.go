// Typed error kinds shared by every stage of the pipeline. The pipeline
// driver and the HTTP layer branch on Kind, not on message text.

package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for per-stage handling decisions.
type Kind string

const (
	ParamNotFound     Kind = "param_not_found"
	MissingData       Kind = "missing_data"
	UnSupportedType   Kind = "unsupported_type"
	InvalidLength     Kind = "invalid_length"
	DatabaseInitError Kind = "database_init_error"
	DatabaseError     Kind = "database_error"
	DatabaseDaoError  Kind = "database_dao_error"
	ConfigIOError     Kind = "config_io_error"
	TargetNotFound    Kind = "target_not_found"
	RequestError      Kind = "request_error"
	UnknownError      Kind = "unknown_error"
)

// Error carries a Kind alongside the usual message and optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the Kind of err, or UnknownError if err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return UnknownError
}

// IsKind reports whether err (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
