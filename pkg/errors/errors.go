// Package errors contains the error helpers used throughout scratchpad, and
// the closed set of error types that the sync core reports.
package errors

import (
	goerrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// New returns an error with the given message.
func New(msg string) error {
	return goerrors.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}

// WithContext annotates `err` with a short description of what was being
// done when it occurred. The result prints as "context: err". It returns nil
// if `err` is nil.
func WithContext(err error, context string) error {
	return pkgerrors.WithMessage(err, context)
}

// RootCause returns the innermost error that was annotated with
// WithContext.
func RootCause(err error) error {
	return pkgerrors.Cause(err)
}

// FriendlyError is an error whose message is meant to be shown directly to
// the user, without any of the context that was attached along the way.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError with a formatted message.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the user facing message.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// GetFriendlyMessage returns the message to print for `err`. If the error
// chain contains a FriendlyError, only its message is returned.
func GetFriendlyMessage(err error) string {
	var friendly interface{ FriendlyMessage() string }
	if goerrors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	if root, ok := RootCause(err).(interface{ FriendlyMessage() string }); ok {
		return root.FriendlyMessage()
	}
	return err.Error()
}
