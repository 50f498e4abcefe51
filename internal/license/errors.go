package license

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidCode       = errors.New("invalid activation code")
	ErrCodeAlreadyUsed   = errors.New("activation code already used")
	ErrInconsistentState = errors.New("inconsistent license state")
	ErrStorage           = errors.New("storage error")
)

// Error is returned by every engine, generator and gateway operation that
// fails. Kind is one of the sentinel errors above; Message is safe to show
// to clients; Err is the underlying cause, if any.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Message returns the client-facing message for err. Errors that did not
// originate here get a generic message.
func Message(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Message
	}
	return "Internal error"
}

// asStorage passes domain errors through and wraps anything else as a
// storage failure so callers never see raw driver errors.
func asStorage(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrStorage, "Request cancelled", err)
	}
	return newError(ErrStorage, "Database error", err)
}
