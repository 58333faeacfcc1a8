package runtime

import (
	"context"
	"os"
	"path"
	"sort"
	goSync "sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/scratchpad/pkg/errors"
)

// Runtime boots runtime filesystem instances.
type Runtime interface {
	Boot(ctx context.Context) (Instance, error)
}

// Instance is a single booted runtime filesystem.
type Instance interface {
	// FS returns the filesystem operations for the instance.
	FS() FS

	// Mount writes `files` (keyed by absolute path) into the filesystem,
	// creating any directories they imply.
	Mount(ctx context.Context, files map[string]string) error

	// Alive returns false once the instance has been lost, and can no longer
	// serve requests.
	Alive() bool

	// Teardown destroys the instance and everything stored in it.
	Teardown() error
}

type aferoInstance struct {
	fs FS
	// The raw afero filesystem. Mounting uses it directly so that parent
	// directories are created along the way.
	raw afero.Fs

	lock     goSync.Mutex
	torndown bool
	alive    func() bool
	cleanup  func() error
}

func newAferoInstance(raw afero.Fs) *aferoInstance {
	return &aferoInstance{fs: NewFS(raw), raw: raw}
}

func (inst *aferoInstance) FS() FS {
	return inst.fs
}

func (inst *aferoInstance) Mount(ctx context.Context, files map[string]string) error {
	// Sort so that mount order, and therefore any error, is deterministic.
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		cleaned := Clean(p)
		if err := inst.raw.MkdirAll(path.Dir(cleaned), 0755); err != nil {
			return errors.Normalize("mount", cleaned, err)
		}
		if err := afero.WriteFile(inst.raw, cleaned, []byte(files[p]), 0644); err != nil {
			return errors.Normalize("mount", cleaned, err)
		}
	}
	log.WithField("files", len(paths)).Debug("Mounted files into runtime")
	return nil
}

func (inst *aferoInstance) Alive() bool {
	inst.lock.Lock()
	defer inst.lock.Unlock()

	if inst.torndown {
		return false
	}
	return inst.alive == nil || inst.alive()
}

func (inst *aferoInstance) Teardown() error {
	inst.lock.Lock()
	defer inst.lock.Unlock()

	if inst.torndown {
		return nil
	}
	inst.torndown = true
	if inst.cleanup != nil {
		return inst.cleanup()
	}
	return nil
}

// MemRuntime boots purely in-memory filesystems.
type MemRuntime struct{}

// Boot returns a new, empty in-memory instance.
func (MemRuntime) Boot(ctx context.Context) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newAferoInstance(afero.NewMemMapFs()), nil
}

// DirRuntime boots instances backed by a scratch directory on the host, so
// that other processes (such as a terminal) can work on the same files.
type DirRuntime struct {
	// Dir is the scratch directory. If it's empty, each boot creates a new
	// temporary directory, which is deleted on teardown.
	Dir string
}

// DirInstance is an Instance backed by a host directory.
type DirInstance struct {
	*aferoInstance
	dir string
}

// Dir returns the host directory that backs the instance.
func (inst DirInstance) Dir() string {
	return inst.dir
}

// Boot prepares the scratch directory and returns an instance rooted at it.
func (r DirRuntime) Boot(ctx context.Context) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := r.Dir
	temporary := dir == ""
	if temporary {
		var err error
		dir, err = afero.TempDir(afero.NewOsFs(), "", "scratchpad-runtime")
		if err != nil {
			return nil, errors.WithContext(err, "create scratch directory")
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithContext(err, "create scratch directory")
	}

	inst := newAferoInstance(afero.NewBasePathFs(afero.NewOsFs(), dir))
	inst.alive = func() bool {
		info, err := os.Stat(dir)
		return err == nil && info.IsDir()
	}
	if temporary {
		inst.cleanup = func() error {
			return os.RemoveAll(dir)
		}
	}
	return DirInstance{aferoInstance: inst, dir: dir}, nil
}
