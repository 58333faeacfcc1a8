package errors

import (
	"context"
	"fmt"
	"os"
	"time"
)

var (
	// ErrRuntimeUnavailable is returned when an operation needs the runtime
	// filesystem, but no runtime instance is booted.
	ErrRuntimeUnavailable = New("runtime filesystem is not available")

	// ErrNotReady is returned when the workspace hasn't finished booting.
	ErrNotReady = New("workspace is not ready")

	// ErrDisposed is returned by operations on a disposed orchestrator.
	ErrDisposed = New("workspace has been disposed")
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// InitializationError is returned when booting the runtime fails. Nothing is
// left in the ready state, and the caller may retry.
type InitializationError struct {
	Err error
}

func (err InitializationError) Error() string {
	return fmt.Sprintf("initialize runtime: %s", err.Err)
}

func (err InitializationError) Unwrap() error {
	return err.Err
}

// IOError is a failed operation on the runtime filesystem or the persistent
// store.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (err IOError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("%s: %s", err.Op, err.Err)
	}
	return fmt.Sprintf("%s %q: %s", err.Op, err.Path, err.Err)
}

func (err IOError) Unwrap() error {
	return err.Err
}

// TimeoutError is reported when an operation exceeded its time bound.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (err TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", err.Op, err.After)
}

// Normalize converts an error returned by an external collaborator into an
// IOError. Errors that are already part of the taxonomy, and context
// cancellations, are returned unchanged.
func Normalize(op, path string, err error) error {
	if err == nil {
		return nil
	}

	switch err.(type) {
	case IOError, InitializationError, TimeoutError, FileNotFound:
		return err
	}
	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return err
	}
	if os.IsNotExist(err) {
		return IOError{Op: op, Path: path, Err: FileNotFound{Path: path}}
	}
	return IOError{Op: op, Path: path, Err: err}
}

// IsNotExist returns whether `err` was caused by a missing path.
func IsNotExist(err error) bool {
	var dne FileNotFound
	if As(err, &dne) {
		return true
	}
	return os.IsNotExist(RootCause(err))
}
