package runtime

import (
	"path"
	"strings"
)

// Root is the path of the runtime filesystem's root directory.
const Root = "/"

// Clean normalizes `p` into an absolute, slash-separated path without
// duplicate separators or trailing slashes.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Join returns the path of the entry `name` inside the directory `dir`.
func Join(dir, name string) string {
	return Clean(dir + "/" + name)
}

// IsWithin returns whether `p` is `dir` itself or one of its descendants.
func IsWithin(p, dir string) bool {
	if p == dir || dir == Root {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

// Rebase moves `p`, which must be within `oldDir`, so that it's under
// `newDir` instead.
func Rebase(p, oldDir, newDir string) string {
	if p == oldDir {
		return newDir
	}
	return newDir + strings.TrimPrefix(p, oldDir)
}
