// Package tree builds the file tree: the sorted, hierarchical snapshot of
// the runtime filesystem that's shown to users.
package tree

import (
	"context"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sidkik/scratchpad/pkg/runtime"
)

// Type is the kind of a FileNode.
type Type string

const (
	// File is a regular file.
	File Type = "file"

	// Directory is a directory, which has children.
	Directory Type = "directory"
)

// FileNode is a single entry in the file tree. A node's Path is its
// parent's Path joined with its Name, and is unique across the tree.
type FileNode struct {
	Name     string      `json:"name"`
	Type     Type        `json:"type"`
	Path     string      `json:"path"`
	Children []*FileNode `json:"children,omitempty"`
}

// IsDir returns whether the node is a directory.
func (n *FileNode) IsDir() bool {
	return n.Type == Directory
}

// Source provides the runtime filesystem to walk. It's consulted before
// every directory read, so the walk fails if the runtime goes away midway.
type Source interface {
	FS() (runtime.FS, error)
}

// Build walks the runtime filesystem from the root and returns its tree.
// The walk is iterative so deep trees don't grow the call stack.
func Build(ctx context.Context, src Source) ([]*FileNode, error) {
	root, err := readLevel(ctx, src, runtime.Root)
	if err != nil {
		return nil, err
	}

	stack := directories(nil, root)
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := readLevel(ctx, src, dir.Path)
		if err != nil {
			return nil, err
		}
		dir.Children = children
		stack = directories(stack, children)
	}
	return root, nil
}

func readLevel(ctx context.Context, src Source, dir string) ([]*FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs, err := src.FS()
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	nodes := make([]*FileNode, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}

		node := &FileNode{
			Name: entry.Name,
			Type: File,
			Path: runtime.Join(dir, entry.Name),
		}
		if entry.IsDir {
			node.Type = Directory
		}
		nodes = append(nodes, node)
	}
	Sort(nodes)
	return nodes, nil
}

func directories(stack, nodes []*FileNode) []*FileNode {
	for _, node := range nodes {
		if node.IsDir() {
			stack = append(stack, node)
		}
	}
	return stack
}

// Sort orders sibling nodes: directories first, then files, each group
// sorted by name with a case-sensitive locale collation.
func Sort(nodes []*FileNode) {
	collator := collate.New(language.Und)
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Type != b.Type {
			return a.IsDir()
		}
		if cmp := collator.CompareString(a.Name, b.Name); cmp != 0 {
			return cmp < 0
		}
		return a.Name < b.Name
	})
}

// Paths flattens the tree into a map from path to node type.
func Paths(nodes []*FileNode) map[string]Type {
	paths := map[string]Type{}
	stack := append([]*FileNode{}, nodes...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		paths[node.Path] = node.Type
		stack = append(stack, node.Children...)
	}
	return paths
}

// Find returns the node at `path`, or nil if it's not in the tree.
func Find(nodes []*FileNode, path string) *FileNode {
	stack := append([]*FileNode{}, nodes...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.Path == path {
			return node
		}
		if runtime.IsWithin(path, node.Path) {
			stack = append(stack, node.Children...)
		}
	}
	return nil
}

// Count returns the number of nodes in the tree.
func Count(nodes []*FileNode) int {
	return len(Paths(nodes))
}
