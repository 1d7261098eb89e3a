package clierr

import "errors"

// Type categorizes a CLI-facing error for consistent messaging & exit codes.
type Type string

const (
	Validation   Type = "validation"
	NotFound     Type = "not_found"
	AuthRequired Type = "auth_required"
	AuthFailed   Type = "auth_failed"
	Network      Type = "network"
	Corrupt      Type = "corrupt"
	Internal     Type = "internal"
)

// Error is a structured user-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new CLI Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// ExitCode maps an error to the process exit code. AuthRequired gets a
// distinct code so the launcher glue can tell "run interactive login" apart
// from a hard failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Type == AuthRequired {
		return 2
	}
	return 1
}
