package sync

import (
	"context"
	goSync "sync"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/metrics"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/store"
)

// State is the lifecycle state of the Orchestrator.
type State int

const (
	// Uninitialized means that no runtime is booted.
	Uninitialized State = iota

	// Booting means that a boot is in progress.
	Booting

	// Ready means that the runtime is booted and mounted.
	Ready

	// Disposed means that the Orchestrator was shut down for good.
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Booting:
		return "booting"
	case Ready:
		return "ready"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Workspace is the part of the workspace that the Orchestrator drives.
type Workspace interface {
	ReloadTree(ctx context.Context)
	ResetState()
}

// Resetter is a component with in-memory state that must be dropped when
// the project is reset.
type Resetter interface {
	ResetState()
}

// Terminal is the user's shell attached to the runtime.
type Terminal interface {
	Clear()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResetters registers components to reset along with the workspace.
func WithResetters(resetters ...Resetter) Option {
	return func(o *Orchestrator) {
		o.resetters = append(o.resetters, resetters...)
	}
}

// WithTerminal sets the terminal that's cleared on reset.
func WithTerminal(terminal Terminal) Option {
	return func(o *Orchestrator) {
		o.terminal = terminal
	}
}

type bootCall struct {
	done chan struct{}
	err  error
}

// Orchestrator boots the runtime, mounts the persisted files into it, and
// resets the project.
type Orchestrator struct {
	runtime   runtime.Runtime
	holder    *runtime.Holder
	files     *store.Files
	ws        Workspace
	resetters []Resetter
	terminal  Terminal

	lock  goSync.Mutex
	state State

	// The boot that's in progress, if any. Concurrent callers of Initialize
	// wait on it rather than booting again.
	inflight *bootCall
}

// NewOrchestrator returns an uninitialized Orchestrator. Booted instances
// are published through `holder`.
func NewOrchestrator(rt runtime.Runtime, holder *runtime.Holder, files *store.Files,
	ws Workspace, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runtime: rt,
		holder:  holder,
		files:   files,
		ws:      ws,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.state
}

// Ready returns whether the runtime is booted and mounted.
func (o *Orchestrator) Ready() bool {
	return o.State() == Ready
}

// Initialize boots the runtime, mounts the persisted files, and loads the
// file tree. It's a no-op if the runtime is already ready. If a boot is
// already in progress, Initialize waits for it instead of starting another.
//
// If booting fails, an errors.InitializationError is returned and the
// Orchestrator goes back to being uninitialized, so Initialize can be
// retried.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.lock.Lock()
	switch o.state {
	case Disposed:
		o.lock.Unlock()
		return errors.ErrDisposed
	case Ready:
		o.lock.Unlock()
		return nil
	}

	if call := o.inflight; call != nil {
		o.lock.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	call := &bootCall{done: make(chan struct{})}
	o.inflight = call
	o.state = Booting
	o.lock.Unlock()

	log.Info("Booting runtime")
	err := o.boot(ctx)
	metrics.RecordBoot(err)

	o.lock.Lock()
	o.inflight = nil
	switch {
	case o.state == Disposed:
		if err == nil {
			err = errors.ErrDisposed
			o.teardownLocked()
		}
	case err != nil:
		o.state = Uninitialized
	default:
		o.state = Ready
	}
	call.err = err
	close(call.done)
	o.lock.Unlock()

	if err != nil {
		log.WithError(err).Error("Failed to initialize runtime")
		return err
	}

	log.Info("Runtime initialized and ready")
	o.ws.ReloadTree(ctx)
	return nil
}

func (o *Orchestrator) boot(ctx context.Context) error {
	inst, err := o.runtime.Boot(ctx)
	if err != nil {
		return errors.InitializationError{Err: err}
	}

	// The instance is only published once it's fully mounted.
	o.mount(ctx, inst)

	if err := ctx.Err(); err != nil {
		if err := inst.Teardown(); err != nil {
			log.WithError(err).Warn("Failed to tear down runtime")
		}
		return errors.InitializationError{Err: err}
	}

	o.holder.Set(inst)
	return nil
}

// mount populates `inst` with every persisted file. It never fails: if the
// persisted files can't be mounted, the runtime starts out empty instead.
func (o *Orchestrator) mount(ctx context.Context, inst runtime.Instance) {
	files, err := o.files.AllFiles(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to list persisted files. " +
			"Starting with an empty filesystem.")
		files = map[string]string{}
	}

	if err := inst.Mount(ctx, files); err != nil {
		log.WithError(err).Error("Failed to mount persisted files. " +
			"Starting with an empty filesystem.")
		if err := inst.Mount(ctx, map[string]string{}); err != nil {
			log.WithError(err).Error("Failed to mount empty filesystem")
		}
		return
	}

	if len(files) == 0 {
		log.Info("No persisted files found. Starting with an empty filesystem.")
	} else {
		log.WithField("files", len(files)).Info("Mounted persisted files")
	}
}

// Reset wipes the project: the runtime filesystem, the persistent store, and
// the in-memory state of the workspace and every registered Resetter. If
// the runtime instance has been lost, it's rebooted. Failures to remove
// individual runtime entries are logged and skipped.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if o.State() == Disposed {
		return errors.ErrDisposed
	}

	log.Info("Resetting environment")
	metrics.RecordReset()

	if o.terminal != nil {
		o.terminal.Clear()
	}

	// The instance is unpublished until it's remounted, so that no one
	// observes it half cleared.
	inst, err := o.holder.Current()
	if err == nil {
		o.holder.Set(nil)
		clearRuntime(ctx, inst.FS())
	}

	if err := o.files.ClearFiles(ctx); err != nil {
		log.WithError(err).Warn("Failed to clear persisted files")
	}

	o.ws.ResetState()
	for _, r := range o.resetters {
		r.ResetState()
	}

	if inst != nil && inst.Alive() {
		o.mount(ctx, inst)
		o.holder.Set(inst)
	} else {
		log.Info("Runtime instance was lost. Rebooting.")
		if inst != nil {
			if err := inst.Teardown(); err != nil {
				log.WithError(err).Debug("Failed to tear down lost runtime")
			}
		}
		o.holder.Set(nil)

		o.lock.Lock()
		if o.state != Disposed {
			o.state = Uninitialized
		}
		o.lock.Unlock()

		if err := o.Initialize(ctx); err != nil {
			return errors.WithContext(err, "reinitialize")
		}
	}

	o.ws.ReloadTree(ctx)
	log.Info("Environment reset complete")
	return nil
}

func clearRuntime(ctx context.Context, fs runtime.FS) {
	entries, err := fs.ReadDir(ctx, runtime.Root)
	if err != nil {
		log.WithError(err).Warn("Failed to list runtime filesystem")
		return
	}

	for _, entry := range entries {
		path := runtime.Join(runtime.Root, entry.Name)
		if err := fs.Remove(ctx, path, true); err != nil {
			log.WithError(err).WithField("path", path).Warn(
				"Failed to remove file from runtime. Skipping.")
		}
	}
}

// Dispose tears down the runtime. The Orchestrator can't be used
// afterwards.
func (o *Orchestrator) Dispose() error {
	o.lock.Lock()
	o.state = Disposed
	o.lock.Unlock()

	return o.teardown()
}

// teardownLocked tears down an instance that finished booting after the
// Orchestrator was disposed.
func (o *Orchestrator) teardownLocked() {
	if err := o.teardown(); err != nil {
		log.WithError(err).Warn("Failed to tear down runtime")
	}
}

func (o *Orchestrator) teardown() error {
	inst, err := o.holder.Current()
	if err != nil {
		return nil
	}
	o.holder.Set(nil)
	return inst.Teardown()
}
