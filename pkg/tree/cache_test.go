package tree

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/runtime"
)

// stallFS blocks every directory listing until `release` is closed.
type stallFS struct {
	runtime.FS
	release chan struct{}
}

func (fs stallFS) ReadDir(ctx context.Context, path string) ([]runtime.DirEntry, error) {
	select {
	case <-fs.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return fs.FS.ReadDir(ctx, path)
}

type unavailableSource struct{}

func (unavailableSource) FS() (runtime.FS, error) {
	return nil, errors.ErrRuntimeUnavailable
}

func TestCacheLoad(t *testing.T) {
	src := newSource(t, []string{"/src"}, []string{"/src/index.js"})
	cache := NewCache(src, clockwork.NewFakeClock(), DefaultLoadTimeout)
	assert.Empty(t, cache.Nodes())

	assert.True(t, cache.Load(context.Background()))
	assert.Equal(t, []*FileNode{dir("/src", file("/src/index.js"))}, cache.Nodes())
	assert.False(t, cache.Loading())

	cache.Clear()
	assert.Empty(t, cache.Nodes())
}

func TestCacheLoadErrorResolvesEmpty(t *testing.T) {
	cache := NewCache(unavailableSource{}, clockwork.NewFakeClock(), DefaultLoadTimeout)
	cache.set([]*FileNode{file("/stale.js")})

	assert.True(t, cache.Load(context.Background()))
	assert.NotNil(t, cache.Nodes())
	assert.Empty(t, cache.Nodes())
}

func TestCacheLoadTimeout(t *testing.T) {
	inner := newSource(t, []string{"/src"}, []string{"/src/index.js"})
	stalled := stallFS{FS: inner.fs, release: make(chan struct{})}
	defer close(stalled.release)

	clock := clockwork.NewFakeClock()
	cache := NewCache(staticSource{stalled}, clock, DefaultLoadTimeout)
	cache.set([]*FileNode{file("/stale.js")})

	loaded := make(chan bool)
	go func() {
		loaded <- cache.Load(context.Background())
	}()

	// Wait for the load to start waiting on its timeout.
	clock.BlockUntil(1)
	assert.True(t, cache.Loading())

	// A second load while the first is in flight is a no-op.
	assert.False(t, cache.Load(context.Background()))

	clock.Advance(DefaultLoadTimeout)
	select {
	case ok := <-loaded:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "tree load didn't resolve after the timeout")
	}

	assert.Empty(t, cache.Nodes())
	assert.False(t, cache.Loading())
}

func TestCacheReloadWaitsForInFlightLoad(t *testing.T) {
	inner := newSource(t, []string{"/src"}, []string{"/src/index.js"})
	stalled := stallFS{FS: inner.fs, release: make(chan struct{})}

	clock := clockwork.NewFakeClock()
	cache := NewCache(staticSource{stalled}, clock, DefaultLoadTimeout)

	go cache.Load(context.Background())
	clock.BlockUntil(1)

	reloaded := make(chan bool)
	go func() {
		reloaded <- cache.Reload(context.Background())
	}()

	// The reload can't start until the stalled load finishes.
	select {
	case <-reloaded:
		require.FailNow(t, "reload returned while a load was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(stalled.release)
	select {
	case ok := <-reloaded:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "reload never ran")
	}

	assert.Equal(t, []*FileNode{dir("/src", file("/src/index.js"))}, cache.Nodes())
	assert.False(t, cache.Loading())
}

func TestCacheReloadCanceled(t *testing.T) {
	inner := newSource(t, nil, []string{"/index.js"})
	stalled := stallFS{FS: inner.fs, release: make(chan struct{})}
	defer close(stalled.release)

	clock := clockwork.NewFakeClock()
	cache := NewCache(staticSource{stalled}, clock, DefaultLoadTimeout)

	go cache.Load(context.Background())
	clock.BlockUntil(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, cache.Reload(ctx))
}
