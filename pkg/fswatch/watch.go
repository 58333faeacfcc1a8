// Package fswatch notices changes made to a directory-backed runtime from
// outside the process, such as by the user's shell or editor.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/scratchpad/pkg/errors"
)

var fs = afero.NewOsFs()

// Watcher sends an event on Changes whenever something within its directory
// changes. Bursts of changes are combined into a single event.
type Watcher struct {
	Changes chan struct{}

	root    string
	ignore  []string
	watcher *fsnotify.Watcher
}

// Watch starts watching `root` recursively. Any path with a component named
// in `ignore` (such as node_modules) is skipped.
func Watch(root string, ignore []string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	w := &Watcher{root: root, ignore: ignore, watcher: watcher}
	if err := w.add(root); err != nil {
		// Close the watcher so that we release the file handles for the
		// previously added paths.
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return nil, err
	}

	w.Changes = combineUpdates(w.filter(watcher.Events, watcher.Errors))
	return w, nil
}

// Close stops watching. Changes is closed once all pending events have been
// drained.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) add(dir string) error {
	pathsToWatch, err := getPathsToWatch(dir, w.root, w.ignore)
	if err != nil {
		return errors.WithContext(err, "get paths")
	}

	for _, path := range pathsToWatch {
		if err := w.watcher.Add(path); err != nil {
			return errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}
	return nil
}

// filter drops events for ignored paths, and starts watching directories as
// they're created.
func (w *Watcher) filter(events <-chan fsnotify.Event, errs <-chan error) <-chan fsnotify.Event {
	filtered := make(chan fsnotify.Event, 16)
	go func() {
		defer close(filtered)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}

				if isIgnored(w.root, event.Name, w.ignore) {
					continue
				}

				if event.Op&fsnotify.Create != 0 {
					if fi, err := fs.Stat(event.Name); err == nil && fi.IsDir() {
						if err := w.add(event.Name); err != nil {
							log.WithError(err).WithField("path", event.Name).Warn(
								"Failed to watch new directory")
						}
					}
				}
				filtered <- event
			case err, ok := <-errs:
				if !ok {
					return
				}
				log.WithError(err).Warn("File watcher error")
			}
		}
	}()
	return filtered
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		defer close(combined)
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns `dir` and all of its subdirectories, except for
// ignored ones. fsnotify doesn't watch directories recursively, but watching
// a directory reports changes to the files directly inside it.
func getPathsToWatch(dir, root string, ignore []string) (paths []string, err error) {
	fi, err := fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: dir}
		}
		return nil, errors.WithContext(err, "stat")
	}
	if !fi.IsDir() {
		return nil, errors.NewFriendlyError("%s is not a directory", dir)
	}

	err = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if !fi.IsDir() {
			return nil
		}

		if isIgnored(root, path, ignore) {
			return filepath.SkipDir
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func isIgnored(root, path string, ignore []string) bool {
	relativePath, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(relativePath, "..") {
		return false
	}

	for _, component := range strings.Split(filepath.ToSlash(relativePath), "/") {
		for _, name := range ignore {
			if component == name {
				return true
			}
		}
	}
	return false
}
