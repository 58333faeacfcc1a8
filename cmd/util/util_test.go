package util

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/scratchpad/pkg/config"
	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/store"
	"github.com/sidkik/scratchpad/pkg/sync"
)

func mockExit(t *testing.T) (*int, *bytes.Buffer) {
	code := -1
	exit = func(c int) { code = c }

	out := &bytes.Buffer{}
	stderr = out
	return &code, out
}

func TestHandleFatalError(t *testing.T) {
	code, out := mockExit(t)

	HandleFatalError(errors.WithContext(
		errors.NewFriendlyError("Something went wrong."), "context"))
	assert.Equal(t, 1, *code)
	assert.Equal(t, "Something went wrong.\n", out.String())

	*code = -1
	out.Reset()
	HandleFatalError(errors.New("unfriendly"))
	assert.Equal(t, 1, *code)
	assert.Empty(t, out.String())
}

func TestHandlePanic(t *testing.T) {
	code, _ := mockExit(t)

	func() {
		defer HandlePanic()
		panic("oops")
	}()
	assert.Equal(t, 1, *code)
}

func TestNewRuntime(t *testing.T) {
	assert.Equal(t, runtime.MemRuntime{}, NewRuntime(config.User{Runtime: config.MemoryRuntime}))
	assert.Equal(t, runtime.DirRuntime{Dir: "/tmp/project"},
		NewRuntime(config.User{Runtime: config.DirRuntime, RuntimeDir: "/tmp/project"}))
}

func TestServices(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	newKV = func(config.User) (store.KV, error) {
		return kv, nil
	}
	require.NoError(t, store.NewFiles(kv).SaveFile(ctx, "/a.js", "persisted"))

	svc, err := NewServices(config.DefaultUser())
	require.NoError(t, err)
	require.NoError(t, svc.Boot(ctx))
	assert.Equal(t, sync.Ready, svc.Orchestrator.State())

	require.NoError(t, svc.Editor.Activate(ctx, "/a.js"))
	require.NoError(t, svc.Editor.Edit("/a.js", "edited"))

	// Closing saves the active file before tearing down.
	svc.Close()
	content, ok, err := store.NewFiles(kv).GetFile(ctx, "/a.js")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "edited", content)
	assert.Equal(t, sync.Disposed, svc.Orchestrator.State())
}

func TestEphemeralServices(t *testing.T) {
	ctx := context.Background()
	newKV = func(config.User) (store.KV, error) {
		return nil, errors.New("the persistent store should not be opened")
	}

	svc, err := NewEphemeralServices(config.DefaultUser())
	require.NoError(t, err)
	require.NoError(t, svc.Boot(ctx))
	defer svc.Close()

	require.NoError(t, svc.Workspace.CreateFile(ctx, "/scratch.txt"))
	paths, err := svc.Files.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/scratch.txt"}, paths)
}
