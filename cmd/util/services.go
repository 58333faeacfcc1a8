package util

import (
	"context"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/config"
	"github.com/sidkik/scratchpad/pkg/editor"
	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/store"
	"github.com/sidkik/scratchpad/pkg/sync"
	"github.com/sidkik/scratchpad/pkg/workspace"
)

// Mocked for unit testing.
var newKV = func(cfg config.User) (store.KV, error) {
	return store.NewDiskKV(cfg.StorePath, store.DefaultCacheSize)
}

// Services is the sync core, wired together according to the user config.
type Services struct {
	Config       config.User
	Holder       *runtime.Holder
	Files        *store.Files
	Workspace    *workspace.Workspace
	Editor       *editor.Manager
	Orchestrator *sync.Orchestrator
}

// NewServices creates the sync core on top of the store at cfg.StorePath.
// The runtime isn't booted.
func NewServices(cfg config.User, opts ...sync.Option) (*Services, error) {
	kv, err := newKV(cfg)
	if err != nil {
		return nil, errors.WithContext(err, "open store")
	}
	return newServices(cfg, kv, opts...)
}

// NewEphemeralServices creates the sync core on top of an in-memory store,
// so nothing outlives the process.
func NewEphemeralServices(cfg config.User, opts ...sync.Option) (*Services, error) {
	return newServices(cfg, store.NewMemoryKV(), opts...)
}

func newServices(cfg config.User, kv store.KV, opts ...sync.Option) (*Services, error) {
	clock := clockwork.NewRealClock()
	holder := runtime.NewHolder()
	files := store.NewFiles(kv)
	ws, err := workspace.New(holder, files, workspace.Options{
		Clock:            clock,
		TreeTimeout:      cfg.TreeTimeout.Duration,
		ContentCacheSize: cfg.ContentCacheSize,
	})
	if err != nil {
		return nil, errors.WithContext(err, "create workspace")
	}

	ed := editor.NewManager(ws, clock, cfg.AutosaveDelay.Duration)
	ws.Subscribe(ed)

	opts = append([]sync.Option{sync.WithResetters(ed)}, opts...)
	orch := sync.NewOrchestrator(NewRuntime(cfg), holder, files, ws, opts...)
	return &Services{
		Config:       cfg,
		Holder:       holder,
		Files:        files,
		Workspace:    ws,
		Editor:       ed,
		Orchestrator: orch,
	}, nil
}

// NewRuntime returns the runtime selected by the user config.
func NewRuntime(cfg config.User) runtime.Runtime {
	if cfg.Runtime == config.DirRuntime {
		return runtime.DirRuntime{Dir: cfg.RuntimeDir}
	}
	return runtime.MemRuntime{}
}

// Boot boots the runtime, and mounts the persisted files into it.
func (s *Services) Boot(ctx context.Context) error {
	if err := s.Orchestrator.Initialize(ctx); err != nil {
		return errors.NewFriendlyError("Failed to start the runtime:\n%s", err)
	}
	return nil
}

// Close flushes the active session, and tears down the runtime.
func (s *Services) Close() {
	if err := s.Editor.SaveActive(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to save the active file")
	}
	s.Editor.Dispose()

	if err := s.Orchestrator.Dispose(); err != nil {
		log.WithError(err).Warn("Failed to tear down runtime")
	}
}
