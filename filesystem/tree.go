package filesystem

import (
	"strings"

	"github.com/brettbedarf/kfs"
)

// SplitPath splits path on "/" and drops empty components, so "a//b/" and
// "/a/b" both yield ["a", "b"].
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// ResolvePath walks path from root one component at a time. An empty path
// resolves to root itself. Resolution is literal: "." and ".." are looked up
// as names and therefore never match.
func ResolvePath(root *Node, path string) (*Node, error) {
	if root == nil {
		return nil, kfs.NewNoRootError()
	}
	if root.isDel {
		return nil, kfs.NewStaleHandleError("root has been deleted")
	}

	cur := root
	for _, name := range SplitPath(path) {
		child, ok := cur.GetChild(name)
		if !ok {
			return nil, kfs.NewNotFoundError(path)
		}
		cur = child
	}
	return cur, nil
}
