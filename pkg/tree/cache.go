package tree

import (
	"context"
	goSync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/metrics"
)

// DefaultLoadTimeout bounds how long a single tree load may take.
const DefaultLoadTimeout = 15 * time.Second

// Cache holds the most recently loaded file tree. The snapshot is replaced
// wholesale on every load, and never modified after it's published.
type Cache struct {
	src     Source
	clock   clockwork.Clock
	timeout time.Duration

	lock    goSync.Mutex
	loading bool
	// Closed when the load in progress finishes.
	done  chan struct{}
	nodes []*FileNode
}

// NewCache returns an empty Cache that loads trees from `src`.
func NewCache(src Source, clock clockwork.Clock, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &Cache{
		src:     src,
		clock:   clock,
		timeout: timeout,
		nodes:   []*FileNode{},
	}
}

// Nodes returns the current snapshot.
func (c *Cache) Nodes() []*FileNode {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.nodes
}

// Loading returns whether a load is in progress.
func (c *Cache) Loading() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.loading
}

// Clear replaces the snapshot with an empty tree.
func (c *Cache) Clear() {
	c.set([]*FileNode{})
}

func (c *Cache) set(nodes []*FileNode) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.nodes = nodes
}

type buildResult struct {
	nodes []*FileNode
	err   error
}

// Load rebuilds the snapshot from the runtime filesystem. If a load is
// already running, Load returns false immediately without doing anything.
//
// Load never fails. If the walk errors or takes longer than the timeout, the
// snapshot becomes empty and the problem is logged. A walk that times out
// is canceled, but isn't waited on.
func (c *Cache) Load(ctx context.Context) bool {
	c.lock.Lock()
	if c.loading {
		c.lock.Unlock()
		log.Debug("File tree load already in progress")
		return false
	}
	c.startLocked()
	c.lock.Unlock()

	c.load(ctx)
	return true
}

// Reload waits for any load in progress to finish, and then rebuilds the
// snapshot. Unlike Load, the resulting snapshot always reflects the
// filesystem as of some point after Reload was called. It returns false
// only if `ctx` is done before its own load could start.
func (c *Cache) Reload(ctx context.Context) bool {
	for {
		c.lock.Lock()
		if !c.loading {
			c.startLocked()
			c.lock.Unlock()

			c.load(ctx)
			return true
		}
		done := c.done
		c.lock.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return false
		}
	}
}

func (c *Cache) startLocked() {
	c.loading = true
	c.done = make(chan struct{})
}

func (c *Cache) load(ctx context.Context) {
	defer func() {
		c.lock.Lock()
		c.loading = false
		close(c.done)
		c.lock.Unlock()
	}()

	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := c.clock.Now()
	done := make(chan buildResult, 1)
	go func() {
		nodes, err := Build(walkCtx, c.src)
		done <- buildResult{nodes, err}
	}()

	nodes := []*FileNode{}
	res := "success"
	select {
	case built := <-done:
		if built.err != nil {
			res = "error"
			log.WithError(built.err).Error("Failed to load file tree")
		} else {
			nodes = built.nodes
		}
	case <-c.clock.After(c.timeout):
		res = "timeout"
		err := errors.TimeoutError{Op: "load file tree", After: c.timeout}
		log.WithError(err).Error("Failed to load file tree")
	}

	c.set(nodes)
	metrics.RecordTreeLoad(res, c.clock.Since(start), Count(nodes))
}
