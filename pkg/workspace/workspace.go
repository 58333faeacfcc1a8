// Package workspace is the storage façade of the sync core. It applies every
// change to the runtime filesystem first, mirrors it into the persistent
// store, and then refreshes the file tree so that observers (such as the
// editor) can reconcile.
package workspace

import (
	"context"
	"os"
	goSync "sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/metrics"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/store"
	"github.com/sidkik/scratchpad/pkg/tree"
)

// DefaultContentCacheSize is the number of file contents kept in memory.
const DefaultContentCacheSize = 512

// Observer is notified about structural changes to the workspace.
type Observer interface {
	// TreeChanged is called after every completed tree refresh.
	TreeChanged(nodes []*tree.FileNode)

	// PathRenamed is called after a file or directory is renamed, before the
	// tree is refreshed.
	PathRenamed(oldPath, newPath string, isDir bool)
}

// Options configures a Workspace.
type Options struct {
	Clock            clockwork.Clock
	TreeTimeout      time.Duration
	ContentCacheSize int
}

// Workspace combines the runtime filesystem and the persistent store into a
// single view of the project files.
type Workspace struct {
	holder   *runtime.Holder
	files    *store.Files
	tree     *tree.Cache
	contents *lru.Cache[string, string]

	lock      goSync.Mutex
	active    string
	observers []Observer
}

// New creates a Workspace that operates on whatever runtime instance is in
// `holder`.
func New(holder *runtime.Holder, files *store.Files, opts Options) (*Workspace, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ContentCacheSize <= 0 {
		opts.ContentCacheSize = DefaultContentCacheSize
	}

	contents, err := lru.New[string, string](opts.ContentCacheSize)
	if err != nil {
		return nil, errors.WithContext(err, "create content cache")
	}

	return &Workspace{
		holder:   holder,
		files:    files,
		tree:     tree.NewCache(holder, opts.Clock, opts.TreeTimeout),
		contents: contents,
	}, nil
}

// Subscribe registers `obs` for notifications.
func (w *Workspace) Subscribe(obs Observer) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.observers = append(w.observers, obs)
}

func (w *Workspace) getObservers() []Observer {
	w.lock.Lock()
	defer w.lock.Unlock()
	return append([]Observer{}, w.observers...)
}

// Tree returns the current file tree.
func (w *Workspace) Tree() []*tree.FileNode {
	return w.tree.Nodes()
}

// FilteredTree returns the current file tree, filtered by name.
func (w *Workspace) FilteredTree(text string) []*tree.FileNode {
	return tree.Filter(w.tree.Nodes(), text)
}

// RefreshTree reloads the file tree, and then lets observers reconcile
// against it. It's a no-op if a refresh is already running.
func (w *Workspace) RefreshTree(ctx context.Context) {
	if w.tree.Load(ctx) {
		w.treeChanged()
	}
}

// ReloadTree is like RefreshTree, except that a refresh that's already
// running doesn't cancel it. It waits for that refresh, and then reloads,
// so the resulting tree includes every change made before the call.
func (w *Workspace) ReloadTree(ctx context.Context) {
	if w.tree.Reload(ctx) {
		w.treeChanged()
	}
}

func (w *Workspace) treeChanged() {
	nodes := w.tree.Nodes()
	for _, obs := range w.getObservers() {
		obs.TreeChanged(nodes)
	}
}

// ActivePath returns the file that's currently selected, if any.
func (w *Workspace) ActivePath() (string, bool) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.active, w.active != ""
}

// SetActivePath selects `path`.
func (w *Workspace) SetActivePath(path string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.active = runtime.Clean(path)
}

// ClearActivePath unselects the active file.
func (w *Workspace) ClearActivePath() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.active = ""
}

// ResetState forgets all cached contents, the active file, and the tree.
func (w *Workspace) ResetState() {
	w.contents.Purge()
	w.ClearActivePath()
	w.tree.Clear()
}

// Content returns the contents of the file at `path`. It reads from the
// runtime filesystem, and falls back to the persistent store. If neither
// works, the failure is logged and the file reads as empty. The only error
// returned is a canceled context.
func (w *Workspace) Content(ctx context.Context, path string) (string, error) {
	path = runtime.Clean(path)
	if content, ok := w.contents.Get(path); ok {
		return content, nil
	}

	content, err := w.readRuntime(ctx, path)
	if err == nil {
		w.contents.Add(path, content)
		return content, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	logger := log.WithField("path", path)
	logger.WithError(err).Warn("Failed to read file from runtime. " +
		"Trying the persistent store.")

	content, ok, err := w.files.GetFile(ctx, path)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		logger.WithError(err).Error("Failed to read file from the persistent store")
	case ok:
		w.contents.Add(path, content)
		return content, nil
	}

	logger.Error("File is unreadable. Treating it as empty.")
	return "", nil
}

func (w *Workspace) readRuntime(ctx context.Context, path string) (string, error) {
	fs, err := w.holder.FS()
	if err != nil {
		return "", err
	}
	return fs.ReadFile(ctx, path)
}

func (w *Workspace) runtimeFS(op, path string) (runtime.FS, error) {
	fs, err := w.holder.FS()
	if err != nil {
		return nil, errors.IOError{Op: op, Path: path, Err: err}
	}
	return fs, nil
}

// Save writes `content` to `path`. The runtime filesystem is the source of
// truth, so if writing to it fails nothing is persisted. A failure to
// persist is returned after the runtime copy is updated.
func (w *Workspace) Save(ctx context.Context, path, content string) (err error) {
	path = runtime.Clean(path)
	defer func() { metrics.RecordOperation("save", err) }()

	fs, err := w.runtimeFS("save", path)
	if err != nil {
		return err
	}

	if err := fs.WriteFile(ctx, path, content); err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to save file")
		return err
	}
	w.contents.Add(path, content)

	if err := w.files.SaveFile(ctx, path, content); err != nil {
		return errors.WithContext(err, "persist")
	}
	log.WithField("path", path).Debug("Saved file")
	return nil
}

// CreateFile creates an empty file at `path`. It fails if something already
// exists at `path`.
func (w *Workspace) CreateFile(ctx context.Context, path string) (err error) {
	path = runtime.Clean(path)
	defer func() { metrics.RecordOperation("create_file", err) }()

	fs, err := w.runtimeFS("create", path)
	if err != nil {
		return err
	}

	if _, err := fs.ReadFile(ctx, path); err == nil || !errors.IsNotExist(err) {
		return errors.IOError{Op: "create", Path: path, Err: os.ErrExist}
	}

	if err := w.Save(ctx, path, ""); err != nil {
		return err
	}
	w.ReloadTree(ctx)
	log.WithField("path", path).Info("Created file")
	return nil
}

// CreateDirectory creates the directory `path`, along with any missing
// parents. Directories aren't persisted on their own.
func (w *Workspace) CreateDirectory(ctx context.Context, path string) (err error) {
	path = runtime.Clean(path)
	defer func() { metrics.RecordOperation("create_directory", err) }()

	fs, err := w.runtimeFS("mkdir", path)
	if err != nil {
		return err
	}

	if err := fs.Mkdir(ctx, path, true); err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to create directory")
		return err
	}
	w.ReloadTree(ctx)
	log.WithField("path", path).Info("Created directory")
	return nil
}

// Delete removes the file or directory at `path`. Deleting a directory
// also deletes the persisted copies of every file inside it.
func (w *Workspace) Delete(ctx context.Context, path string, isDir bool) (err error) {
	path = runtime.Clean(path)
	defer func() { metrics.RecordOperation("delete", err) }()

	fs, err := w.runtimeFS("delete", path)
	if err != nil {
		return err
	}

	if err := fs.Remove(ctx, path, isDir); err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to delete")
		return err
	}

	// A recursive delete may have been asked of a file, so the entry for
	// `path` itself goes too.
	storeErr := w.files.DeleteFile(ctx, path)
	if isDir {
		if err := w.files.DeleteTree(ctx, path); storeErr == nil {
			storeErr = err
		}
	}

	w.lock.Lock()
	if w.active != "" && (w.active == path || (isDir && runtime.IsWithin(w.active, path))) {
		w.active = ""
	}
	w.lock.Unlock()

	w.contents.Remove(path)
	if isDir {
		for _, cached := range w.contents.Keys() {
			if runtime.IsWithin(cached, path) {
				w.contents.Remove(cached)
			}
		}
	}

	w.ReloadTree(ctx)
	log.WithFields(log.Fields{"path": path, "dir": isDir}).Info("Deleted")
	return errors.WithContext(storeErr, "delete persisted copy")
}

// Rename moves the file or directory at `oldPath` to `newPath`. Persisted
// copies, cached contents, the active file, and observers are all moved
// along with it.
func (w *Workspace) Rename(ctx context.Context, oldPath, newPath string) (err error) {
	oldPath, newPath = runtime.Clean(oldPath), runtime.Clean(newPath)
	defer func() { metrics.RecordOperation("rename", err) }()

	fs, err := w.runtimeFS("rename", oldPath)
	if err != nil {
		return err
	}

	// Anything that can't be read as a file is treated as a directory.
	content, readErr := fs.ReadFile(ctx, oldPath)
	isDir := readErr != nil

	if err := fs.Rename(ctx, oldPath, newPath); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"from": oldPath,
			"to":   newPath,
		}).Error("Failed to rename")
		return err
	}

	var storeErr error
	if isDir {
		storeErr = w.files.MoveTree(ctx, oldPath, newPath)
	} else if storeErr = w.files.SaveFile(ctx, newPath, content); storeErr == nil {
		storeErr = w.files.DeleteFile(ctx, oldPath)
	}

	w.lock.Lock()
	if w.active == oldPath || (isDir && w.active != "" && runtime.IsWithin(w.active, oldPath)) {
		w.active = runtime.Rebase(w.active, oldPath, newPath)
	}
	w.lock.Unlock()

	w.moveCached(oldPath, newPath)
	if isDir {
		for _, cached := range w.contents.Keys() {
			if cached != oldPath && runtime.IsWithin(cached, oldPath) {
				w.moveCached(cached, runtime.Rebase(cached, oldPath, newPath))
			}
		}
	}

	for _, obs := range w.getObservers() {
		obs.PathRenamed(oldPath, newPath, isDir)
	}

	w.ReloadTree(ctx)
	log.WithFields(log.Fields{"from": oldPath, "to": newPath}).Info("Renamed")
	return errors.WithContext(storeErr, "move persisted copy")
}

func (w *Workspace) moveCached(oldPath, newPath string) {
	if content, ok := w.contents.Peek(oldPath); ok {
		w.contents.Remove(oldPath)
		w.contents.Add(newPath, content)
	}
}
