package store

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/scratchpad/pkg/errors"
)

// FilePrefix namespaces file entries from any other class of key kept in
// the same KV.
const FilePrefix = "file:"

// Files is the view of a KV that holds project files, keyed by their
// absolute path. Directories are never stored; they're implied by the paths
// of the files they contain.
type Files struct {
	kv KV
}

// NewFiles returns the file view of `kv`.
func NewFiles(kv KV) *Files {
	return &Files{kv: kv}
}

func fileKey(path string) string {
	return FilePrefix + path
}

// SaveFile creates or replaces the persisted copy of `path`.
func (f *Files) SaveFile(ctx context.Context, path, content string) error {
	if err := f.kv.Set(ctx, fileKey(path), content); err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to persist file")
		return errors.Normalize("persist", path, err)
	}
	return nil
}

// GetFile returns the persisted copy of `path`.
func (f *Files) GetFile(ctx context.Context, path string) (string, bool, error) {
	content, ok, err := f.kv.Get(ctx, fileKey(path))
	if err != nil {
		return "", false, errors.Normalize("read persisted", path, err)
	}
	return content, ok, nil
}

// DeleteFile removes the persisted copy of `path`.
func (f *Files) DeleteFile(ctx context.Context, path string) error {
	if err := f.kv.Delete(ctx, fileKey(path)); err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to delete persisted file")
		return errors.Normalize("delete persisted", path, err)
	}
	return nil
}

// Paths lists the paths of all persisted files.
func (f *Files) Paths(ctx context.Context) ([]string, error) {
	keys, err := f.kv.Keys(ctx)
	if err != nil {
		return nil, errors.Normalize("list persisted", "", err)
	}

	var paths []string
	for _, key := range keys {
		if strings.HasPrefix(key, FilePrefix) {
			paths = append(paths, strings.TrimPrefix(key, FilePrefix))
		}
	}
	return paths, nil
}

// AllFiles returns the contents of every persisted file, keyed by path.
// Entries that can't be read are logged and skipped.
func (f *Files) AllFiles(ctx context.Context) (map[string]string, error) {
	paths, err := f.Paths(ctx)
	if err != nil {
		return nil, err
	}

	files := map[string]string{}
	for _, path := range paths {
		content, ok, err := f.GetFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("path", path).Warn("Skipping unreadable persisted file")
			continue
		}
		if ok {
			files[path] = content
		}
	}
	return files, nil
}

// ClearFiles deletes every persisted file. Keys outside the file namespace
// are left alone. It keeps going after a failed delete, and returns the
// first error.
func (f *Files) ClearFiles(ctx context.Context) error {
	paths, err := f.Paths(ctx)
	if err != nil {
		return err
	}
	return f.deleteAll(ctx, paths)
}

// DeleteTree deletes the persisted files under the directory `dir`.
func (f *Files) DeleteTree(ctx context.Context, dir string) error {
	paths, err := f.Paths(ctx)
	if err != nil {
		return err
	}
	return f.deleteAll(ctx, under(paths, dir))
}

// MoveTree moves the persisted files under the directory `oldDir` so that
// they're under `newDir`. Each file is written to its new key before the old
// key is deleted, so an interrupted move never loses content.
func (f *Files) MoveTree(ctx context.Context, oldDir, newDir string) error {
	paths, err := f.Paths(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, oldPath := range under(paths, oldDir) {
		newPath := newDir + strings.TrimPrefix(oldPath, oldDir)
		if err := f.Move(ctx, oldPath, newPath); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Move migrates the persisted copy of a single file.
func (f *Files) Move(ctx context.Context, oldPath, newPath string) error {
	content, ok, err := f.GetFile(ctx, oldPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := f.SaveFile(ctx, newPath, content); err != nil {
		return err
	}
	return f.DeleteFile(ctx, oldPath)
}

func (f *Files) deleteAll(ctx context.Context, paths []string) error {
	var firstErr error
	for _, path := range paths {
		if err := f.DeleteFile(ctx, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func under(paths []string, dir string) (children []string) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for _, path := range paths {
		if strings.HasPrefix(path, prefix) {
			children = append(children, path)
		}
	}
	return children
}
