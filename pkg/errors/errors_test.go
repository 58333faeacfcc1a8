package errors

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		exp  string
	}{
		{
			name: "Plain error",
			err:  New("boom"),
			exp:  "boom",
		},
		{
			name: "Friendly error",
			err:  NewFriendlyError("Please run %s", "scratchpad config"),
			exp:  "Please run scratchpad config",
		},
		{
			name: "Wrapped friendly error",
			err:  WithContext(NewFriendlyError("friendly"), "context"),
			exp:  "friendly",
		},
		{
			name: "Wrapped plain error",
			err:  WithContext(New("boom"), "context"),
			exp:  "context: boom",
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, GetFriendlyMessage(test.err), test.name)
	}
}

func TestNormalize(t *testing.T) {
	assert.NoError(t, Normalize("read", "/a", nil))

	notExist := Normalize("read", "/a", &os.PathError{Op: "open", Path: "/a", Err: os.ErrNotExist})
	var ioErr IOError
	assert.True(t, As(notExist, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.True(t, IsNotExist(notExist))

	other := Normalize("write", "/a", New("disk full"))
	assert.Equal(t, `write "/a": disk full`, other.Error())
	assert.False(t, IsNotExist(other))

	// Errors that are already classified pass through.
	timeout := TimeoutError{Op: "load file tree"}
	assert.Equal(t, timeout, Normalize("read", "/a", timeout))
	assert.Equal(t, context.Canceled, Normalize("read", "/a", context.Canceled))
}

func TestIsNotExist(t *testing.T) {
	assert.True(t, IsNotExist(FileNotFound{Path: "/a"}))
	assert.True(t, IsNotExist(WithContext(os.ErrNotExist, "stat")))
	assert.False(t, IsNotExist(New("other")))
	assert.False(t, IsNotExist(IOError{Op: "write", Err: os.ErrExist}))
}

func TestInitializationErrorUnwrap(t *testing.T) {
	err := InitializationError{Err: context.DeadlineExceeded}
	assert.True(t, Is(err, context.DeadlineExceeded))
	assert.Equal(t, "initialize runtime: context deadline exceeded", err.Error())
}
