// Package runtime wraps the ephemeral runtime filesystem. Every booted
// Instance starts out empty, and everything written to it is lost when the
// instance goes away.
package runtime

import (
	"context"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/sidkik/scratchpad/pkg/errors"
)

// DirEntry is a single result of listing a directory.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FS is the set of filesystem operations the sync core needs from the
// runtime. All paths are absolute and slash-separated. Contents are UTF-8
// text.
type FS interface {
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	Mkdir(ctx context.Context, path string, recursive bool) error
	Remove(ctx context.Context, path string, recursive bool) error
	Rename(ctx context.Context, oldPath, newPath string) error
}

// aferoFS implements FS on top of an afero filesystem. Errors from afero are
// normalized into errors.IOError.
type aferoFS struct {
	fs afero.Fs
}

// NewFS returns an FS backed by `fs`.
func NewFS(fs afero.Fs) FS {
	return aferoFS{fs}
}

func (a aferoFS) ReadDir(ctx context.Context, dir string) ([]DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(a.fs, Clean(dir))
	if err != nil {
		return nil, errors.Normalize("readdir", dir, err)
	}

	entries := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, DirEntry{Name: info.Name(), IsDir: info.IsDir()})
	}
	return entries, nil
}

func (a aferoFS) ReadFile(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p = Clean(p)
	if isDir, err := afero.IsDir(a.fs, p); err == nil && isDir {
		return "", errors.IOError{Op: "read", Path: p, Err: errors.New("is a directory")}
	}

	contents, err := afero.ReadFile(a.fs, p)
	if err != nil {
		return "", errors.Normalize("read", p, err)
	}
	return string(contents), nil
}

func (a aferoFS) WriteFile(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = Clean(p)
	if err := a.checkParent("write", p); err != nil {
		return err
	}

	if err := afero.WriteFile(a.fs, p, []byte(content), 0644); err != nil {
		return errors.Normalize("write", p, err)
	}
	return nil
}

func (a aferoFS) Mkdir(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = Clean(p)
	var err error
	if recursive {
		err = a.fs.MkdirAll(p, 0755)
	} else {
		err = a.fs.Mkdir(p, 0755)
	}
	return errors.Normalize("mkdir", p, err)
}

func (a aferoFS) Remove(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = Clean(p)
	info, err := a.fs.Stat(p)
	if err != nil {
		return errors.Normalize("remove", p, err)
	}

	if !info.IsDir() {
		return errors.Normalize("remove", p, a.fs.Remove(p))
	}

	if !recursive {
		empty, err := afero.IsEmpty(a.fs, p)
		if err != nil {
			return errors.Normalize("remove", p, err)
		}
		if !empty {
			return errors.IOError{Op: "remove", Path: p, Err: errors.New("directory not empty")}
		}
		return errors.Normalize("remove", p, a.fs.Remove(p))
	}
	return errors.Normalize("remove", p, a.fs.RemoveAll(p))
}

func (a aferoFS) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	oldPath, newPath = Clean(oldPath), Clean(newPath)
	info, err := a.fs.Stat(oldPath)
	if err != nil {
		return errors.Normalize("rename", oldPath, err)
	}

	if _, err := a.fs.Stat(newPath); err == nil {
		return errors.IOError{Op: "rename", Path: newPath, Err: os.ErrExist}
	}
	if err := a.checkParent("rename", newPath); err != nil {
		return err
	}

	if info.IsDir() {
		if IsWithin(newPath, oldPath) {
			return errors.IOError{Op: "rename", Path: oldPath,
				Err: errors.New("cannot move a directory into itself")}
		}
		return a.moveDir(oldPath, newPath)
	}
	return errors.Normalize("rename", oldPath, a.fs.Rename(oldPath, newPath))
}

// checkParent fails unless the parent of `p` is an existing directory.
// MemMapFs would otherwise create missing parents, which a real filesystem
// doesn't.
func (a aferoFS) checkParent(op, p string) error {
	parent := path.Dir(p)
	if isDir, err := afero.IsDir(a.fs, parent); err != nil || !isDir {
		return errors.IOError{Op: op, Path: p, Err: errors.FileNotFound{Path: parent}}
	}
	return nil
}

// moveDir copies the directory tree to its new location before removing the
// original. MemMapFs only renames the directory entry itself, not its
// children.
func (a aferoFS) moveDir(oldPath, newPath string) error {
	err := afero.Walk(a.fs, oldPath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		dst := Rebase(Clean(p), oldPath, newPath)
		if info.IsDir() {
			return a.fs.MkdirAll(dst, info.Mode().Perm()|0700)
		}

		contents, err := afero.ReadFile(a.fs, p)
		if err != nil {
			return err
		}
		return afero.WriteFile(a.fs, dst, contents, info.Mode().Perm())
	})
	if err != nil {
		return errors.Normalize("rename", oldPath, err)
	}
	return errors.Normalize("rename", oldPath, a.fs.RemoveAll(oldPath))
}
