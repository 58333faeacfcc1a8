package workspace

import (
	"context"
	goSync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/scratchpad/pkg/errors"
	"github.com/sidkik/scratchpad/pkg/runtime"
	"github.com/sidkik/scratchpad/pkg/store"
	"github.com/sidkik/scratchpad/pkg/tree"
)

type rename struct {
	from, to string
	isDir    bool
}

type recorder struct {
	lock    goSync.Mutex
	trees   [][]*tree.FileNode
	renames []rename
}

func (r *recorder) TreeChanged(nodes []*tree.FileNode) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.trees = append(r.trees, nodes)
}

func (r *recorder) PathRenamed(from, to string, isDir bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.renames = append(r.renames, rename{from, to, isDir})
}

type fixture struct {
	ws     *Workspace
	holder *runtime.Holder
	files  *store.Files
	fs     runtime.FS
	obs    *recorder
}

func newFixture(t *testing.T, mounted map[string]string) fixture {
	ctx := context.Background()
	inst, err := runtime.MemRuntime{}.Boot(ctx)
	require.NoError(t, err)
	require.NoError(t, inst.Mount(ctx, mounted))

	holder := runtime.NewHolder()
	holder.Set(inst)

	files := store.NewFiles(store.NewMemoryKV())
	ws, err := New(holder, files, Options{})
	require.NoError(t, err)

	obs := &recorder{}
	ws.Subscribe(obs)
	return fixture{ws: ws, holder: holder, files: files, fs: inst.FS(), obs: obs}
}

func (f fixture) persisted(t *testing.T) map[string]string {
	all, err := f.files.AllFiles(context.Background())
	require.NoError(t, err)
	return all
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/src/a.js": "old"})

	require.NoError(t, f.ws.Save(ctx, "/src/a.js", "new"))

	runtimeContent, err := f.fs.ReadFile(ctx, "/src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "new", runtimeContent)
	assert.Equal(t, map[string]string{"/src/a.js": "new"}, f.persisted(t))

	content, err := f.ws.Content(ctx, "src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "new", content)
}

func TestSaveRuntimeFailureIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	err := f.ws.Save(ctx, "/missing/a.js", "content")
	assert.True(t, errors.IsNotExist(err))
	assert.Empty(t, f.persisted(t))

	content, err := f.ws.Content(ctx, "/missing/a.js")
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestSaveWithoutRuntime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.holder.Set(nil)

	err := f.ws.Save(ctx, "/a.js", "content")
	assert.True(t, errors.Is(err, errors.ErrRuntimeUnavailable))
	assert.Empty(t, f.persisted(t))
}

func TestContentFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/runtime.js": "from runtime"})
	require.NoError(t, f.files.SaveFile(ctx, "/runtime.js", "stale"))
	require.NoError(t, f.files.SaveFile(ctx, "/stored.js", "from store"))

	tests := []struct {
		name string
		path string
		exp  string
	}{
		{"Runtime wins", "/runtime.js", "from runtime"},
		{"Store fallback", "/stored.js", "from store"},
		{"Unreadable reads as empty", "/nowhere.js", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			content, err := f.ws.Content(ctx, test.path)
			require.NoError(t, err)
			assert.Equal(t, test.exp, content)
		})
	}
}

func TestContentWithoutRuntime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.holder.Set(nil)
	require.NoError(t, f.files.SaveFile(ctx, "/a.js", "persisted"))

	content, err := f.ws.Content(ctx, "/a.js")
	require.NoError(t, err)
	assert.Equal(t, "persisted", content)
}

func TestContentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t, map[string]string{"/a.js": "content"})
	_, err := f.ws.Content(ctx, "/a.js")
	assert.Equal(t, context.Canceled, err)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/existing.js": "keep me"})

	require.NoError(t, f.ws.CreateDirectory(ctx, "/src/lib"))
	require.NoError(t, f.ws.CreateFile(ctx, "/src/lib/util.js"))

	assert.Equal(t, []string{"/src", "/src/lib", "/src/lib/util.js", "/existing.js"},
		order(f.ws.Tree()))
	assert.Equal(t, map[string]string{"/src/lib/util.js": ""}, f.persisted(t))

	err := f.ws.CreateFile(ctx, "/existing.js")
	assert.Error(t, err)
	content, err := f.fs.ReadFile(ctx, "/existing.js")
	require.NoError(t, err)
	assert.Equal(t, "keep me", content)

	assert.Error(t, f.ws.CreateFile(ctx, "/src"))
	assert.Error(t, f.ws.CreateFile(ctx, "/nope/a.js"))
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/a.js": "a", "/b.js": "b"})
	require.NoError(t, f.ws.Save(ctx, "/a.js", "a"))
	require.NoError(t, f.ws.Save(ctx, "/b.js", "b"))
	f.ws.SetActivePath("/a.js")

	require.NoError(t, f.ws.Delete(ctx, "/a.js", false))

	assert.Equal(t, map[string]string{"/b.js": "b"}, f.persisted(t))
	assert.Equal(t, []string{"/b.js"}, order(f.ws.Tree()))
	_, ok := f.ws.ActivePath()
	assert.False(t, ok)

	content, err := f.ws.Content(ctx, "/a.js")
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestDeleteFileRecursively(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.ws.Save(ctx, "/a.js", "a"))
	require.NoError(t, f.ws.Save(ctx, "/a.js.bak", "backup"))

	require.NoError(t, f.ws.Delete(ctx, "/a.js", true))

	assert.Equal(t, map[string]string{"/a.js.bak": "backup"}, f.persisted(t))
	assert.Equal(t, []string{"/a.js.bak"}, order(f.ws.Tree()))
}

func TestDeleteDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.ws.CreateDirectory(ctx, "/src/lib"))
	for _, path := range []string{"/src/a.js", "/src/lib/b.js", "/srcfile.js"} {
		require.NoError(t, f.ws.Save(ctx, path, path))
	}
	f.ws.SetActivePath("/src/lib/b.js")

	// Directory deletes must be recursive.
	assert.Error(t, f.ws.Delete(ctx, "/src", false))

	require.NoError(t, f.ws.Delete(ctx, "/src", true))
	assert.Equal(t, map[string]string{"/srcfile.js": "/srcfile.js"}, f.persisted(t))
	assert.Equal(t, []string{"/srcfile.js"}, order(f.ws.Tree()))
	_, ok := f.ws.ActivePath()
	assert.False(t, ok)

	content, err := f.ws.Content(ctx, "/src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestDeleteKeepsUnrelatedActivePath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/a.js": "a", "/b.js": "b"})
	f.ws.SetActivePath("/b.js")

	require.NoError(t, f.ws.Delete(ctx, "/a.js", false))
	active, ok := f.ws.ActivePath()
	assert.True(t, ok)
	assert.Equal(t, "/b.js", active)
}

func TestRenameFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.ws.Save(ctx, "/old.js", "content"))
	f.ws.SetActivePath("/old.js")

	require.NoError(t, f.ws.Rename(ctx, "/old.js", "/new.js"))

	assert.Equal(t, map[string]string{"/new.js": "content"}, f.persisted(t))
	assert.Equal(t, []string{"/new.js"}, order(f.ws.Tree()))

	active, _ := f.ws.ActivePath()
	assert.Equal(t, "/new.js", active)
	assert.Equal(t, []rename{{"/old.js", "/new.js", false}}, f.obs.renames)

	content, err := f.ws.Content(ctx, "/new.js")
	require.NoError(t, err)
	assert.Equal(t, "content", content)
}

func TestRenameDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.ws.CreateDirectory(ctx, "/src/lib"))
	require.NoError(t, f.ws.Save(ctx, "/src/a.js", "a"))
	require.NoError(t, f.ws.Save(ctx, "/src/lib/b.js", "b"))
	require.NoError(t, f.ws.Save(ctx, "/other.js", "other"))
	f.ws.SetActivePath("/src/lib/b.js")

	require.NoError(t, f.ws.Rename(ctx, "/src", "/app"))

	assert.Equal(t, map[string]string{
		"/app/a.js":     "a",
		"/app/lib/b.js": "b",
		"/other.js":     "other",
	}, f.persisted(t))
	assert.Equal(t, []string{"/app", "/app/lib", "/app/lib/b.js", "/app/a.js", "/other.js"},
		order(f.ws.Tree()))

	active, _ := f.ws.ActivePath()
	assert.Equal(t, "/app/lib/b.js", active)
	assert.Equal(t, []rename{{"/src", "/app", true}}, f.obs.renames)

	content, err := f.ws.Content(ctx, "/app/lib/b.js")
	require.NoError(t, err)
	assert.Equal(t, "b", content)
}

func TestRenameMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	err := f.ws.Rename(ctx, "/nope.js", "/yes.js")
	assert.True(t, errors.IsNotExist(err))
	assert.Empty(t, f.obs.renames)
}

func TestRefreshNotifiesObservers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/a.js": "a"})

	f.ws.RefreshTree(ctx)
	require.Len(t, f.obs.trees, 1)
	assert.Equal(t, []string{"/a.js"}, order(f.obs.trees[0]))
}

func TestFilteredTree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{
		"/src/App.tsx":  "",
		"/src/util.ts":  "",
		"/package.json": "",
	})
	f.ws.RefreshTree(ctx)

	assert.Equal(t, []string{"/src", "/src/App.tsx"}, order(f.ws.FilteredTree("app")))
	assert.Len(t, order(f.ws.FilteredTree("")), 4)
	assert.Empty(t, f.ws.FilteredTree("zzz"))
}

func TestResetState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"/a.js": "a"})
	_, err := f.ws.Content(ctx, "/a.js")
	require.NoError(t, err)
	f.ws.SetActivePath("/a.js")
	f.ws.RefreshTree(ctx)

	f.ws.ResetState()

	_, ok := f.ws.ActivePath()
	assert.False(t, ok)
	assert.Empty(t, f.ws.Tree())
	assert.Equal(t, 0, f.ws.contents.Len())
}

// order lists the tree's paths in display order.
func order(nodes []*tree.FileNode) []string {
	paths := []string{}
	for _, node := range nodes {
		paths = append(paths, node.Path)
		paths = append(paths, order(node.Children)...)
	}
	return paths
}
