package fswatch

import (
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/scratchpad/pkg/errors"
)

func TestGetPathsToWatch(t *testing.T) {
	tests := []struct {
		name     string
		dirs     []string
		files    []string
		ignore   []string
		expPaths []string
	}{
		{
			name: "Simple case -- all directories",
			dirs: []string{"/project/tests", "/project/src",
				"/project/src/app", "/project/src/app/controllers"},
			files: []string{"/project/tests/test.js", "/project/src/package.json",
				"/project/src/app/controllers/index.js"},
			expPaths: []string{"/project", "/project/src", "/project/src/app",
				"/project/src/app/controllers", "/project/tests"},
		},
		{
			name:  "Don't watch ignored paths",
			dirs:  []string{"/project/src", "/project/node_modules/express", "/project/src/.git"},
			files: []string{"/project/src/index.js", "/project/node_modules/express/index.js"},
			ignore: []string{"node_modules", ".git"},
			expPaths: []string{"/project", "/project/src"},
		},
	}

	for _, test := range tests {
		fs = afero.NewMemMapFs()
		for _, dir := range test.dirs {
			assert.NoError(t, fs.MkdirAll(dir, 0755))
		}
		for _, file := range test.files {
			assert.NoError(t, afero.WriteFile(fs, file, []byte("testfile"), 0644))
		}

		paths, err := getPathsToWatch("/project", "/project", test.ignore)
		assert.NoError(t, err)

		// Sort for consistency.
		sort.Strings(test.expPaths)
		sort.Strings(paths)
		assert.Equal(t, test.expPaths, paths, test.name)
	}
}

func TestGetPathsToWatchMissing(t *testing.T) {
	fs = afero.NewMemMapFs()
	_, err := getPathsToWatch("/project", "/project", nil)
	assert.Equal(t, errors.FileNotFound{Path: "/project"}, err)
}

func TestIsIgnored(t *testing.T) {
	ignore := []string{"node_modules", ".git"}
	tests := []struct {
		path string
		exp  bool
	}{
		{"/project", false},
		{"/project/src/index.js", false},
		{"/project/node_modules", true},
		{"/project/src/node_modules/express/index.js", true},
		{"/project/.gitignore", false},
		{"/elsewhere/node_modules", false},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, isIgnored("/project", test.path, ignore), test.path)
	}
}

func TestCombineUpdates(t *testing.T) {
	t.Parallel()

	updates := make(chan fsnotify.Event, 1024)
	addEvents := func(num int) {
		for i := 0; i < num; i++ {
			updates <- fsnotify.Event{}
		}
	}

	// Seed with events.
	numUpdates := 100
	addEvents(numUpdates)
	combined := combineUpdates(updates)

	// Assert that the events are being combined.
	numCombined := countEvents(combined)
	assert.True(t, numCombined < numUpdates,
		"expected less combined events (%d) than %d", numCombined, numUpdates)

	// Add more events.
	addEvents(100)
	<-combined

	close(updates)
	for range combined {
	}
}

func TestWatch(t *testing.T) {
	fs = afero.NewOsFs()
	root := t.TempDir()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "node_modules"), 0755))

	watcher, err := Watch(root, []string{"node_modules"})
	require.NoError(t, err)
	defer watcher.Close()

	// Changes to ignored paths don't trigger.
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "node_modules", "a.js"), nil, 0644))
	select {
	case <-watcher.Changes:
		t.Fatal("unexpected change event")
	case <-time.After(200 * time.Millisecond):
	}

	// Directories created after the watch started are watched too.
	require.NoError(t, fs.Mkdir(filepath.Join(root, "src"), 0755))
	waitForChange(t, watcher)

	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "src", "index.js"), nil, 0644))
	waitForChange(t, watcher)
}

func waitForChange(t *testing.T, watcher *Watcher) {
	select {
	case <-watcher.Changes:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	// Drain any events that were combined into the same burst.
	for {
		select {
		case <-watcher.Changes:
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func countEvents(c chan struct{}) (n int) {
	// Block until the first event.
	<-c
	n++

	// Count the number of events until there hasn't been any new events in 500
	// milliseconds.
	for {
		select {
		case <-c:
			n++
		case <-time.After(500 * time.Millisecond):
			return n
		}
	}
}
