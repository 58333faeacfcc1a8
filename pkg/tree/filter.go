package tree

import "strings"

// Filter returns the nodes whose name contains `text`, ignoring case,
// along with the ancestor directories needed to reach them. A directory
// whose own name matches is kept even if none of its children do. Kept
// directories only contain their filtered children. The input is never
// modified.
func Filter(nodes []*FileNode, text string) []*FileNode {
	if text == "" {
		return nodes
	}
	needle := strings.ToLower(text)
	matches := func(n *FileNode) bool {
		return strings.Contains(strings.ToLower(n.Name), needle)
	}

	// Each frame filters the children of one directory. A directory's frame
	// is popped once all its children are processed, at which point we know
	// whether to keep it.
	type frame struct {
		dir  *FileNode
		src  []*FileNode
		next int
		kept []*FileNode
	}

	stack := []*frame{{src: nodes}}
	for {
		top := stack[len(stack)-1]
		if top.next == len(top.src) {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				if top.kept == nil {
					return []*FileNode{}
				}
				return top.kept
			}

			if len(top.kept) > 0 || matches(top.dir) {
				filtered := *top.dir
				filtered.Children = top.kept
				parent := stack[len(stack)-1]
				parent.kept = append(parent.kept, &filtered)
			}
			continue
		}

		node := top.src[top.next]
		top.next++
		if node.IsDir() {
			stack = append(stack, &frame{dir: node, src: node.Children})
		} else if matches(node) {
			top.kept = append(top.kept, node)
		}
	}
}
