package utils

import "fmt"

// AppError is the error shape surfaced to operators across the governance
// pipeline: the failing operation, a message safe to log or return on the
// API, and the underlying cause for errors.Is/As chains.
type AppError struct {
	Op  string
	Msg string
	Err error
}

// Error renders "op: msg" with the cause appended when one exists.
func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError wraps err with the operation and operator-facing message.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
