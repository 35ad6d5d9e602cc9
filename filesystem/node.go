package filesystem

import (
	"fmt"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/chunkstore"
	"github.com/brettbedarf/kfs/config"
)

// Node is a File or Directory in the namespace tree.
//
// A Node exclusively owns its children and, for File nodes, its storage chain.
// The parent reference is non-owning and nil for roots and detached nodes.
// Nodes are not safe for concurrent use.
type Node struct {
	name     string
	kind     kfs.NodeKind
	parent   *Node
	children []*Node          // kept in ascending byte order of name
	storage  *chunkstore.Chain // File only; nil until the first write
	isDel    bool
}

var _ kfs.NodeInfo = (*Node)(nil)

// NewNode validates name and kind and returns a detached node.
func NewNode(name string, kind kfs.NodeKind) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, kfs.NewInvalidArgumentError(fmt.Sprintf("unknown node kind %q", kind))
	}
	return &Node{name: name, kind: kind}, nil
}

// ValidateName checks that name is 1 to [config.MaxNameLength] bytes drawn
// from [A-Za-z0-9._-] and is not one of the navigation tokens "." or "..".
func ValidateName(name string) error {
	switch {
	case name == "":
		return kfs.NewInvalidNameError(name, "empty")
	case len(name) > config.MaxNameLength:
		return kfs.NewInvalidNameError(name, fmt.Sprintf("longer than %d bytes", config.MaxNameLength))
	case name == "." || name == "..":
		return kfs.NewInvalidNameError(name, "reserved")
	}
	for i := 0; i < len(name); i++ {
		if !validNameByte(name[i]) {
			return kfs.NewInvalidNameError(name, fmt.Sprintf("invalid character %q", name[i]))
		}
	}
	return nil
}

func validNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}

// Name returns the node's name (last part of the path)
func (n *Node) Name() string {
	return n.name
}

func (n *Node) Kind() kfs.NodeKind {
	return n.kind
}

func (n *Node) IsDir() bool {
	return n.kind == kfs.DirNode
}

func (n *Node) IsFile() bool {
	return n.kind == kfs.FileNode
}

// Parent returns the containing directory or nil for a root
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

func (n *Node) IsDel() bool {
	return n.isDel
}

// Size returns the capacity of the node's storage chain, 0 when none.
func (n *Node) Size() int {
	if n.storage == nil {
		return 0
	}
	return n.storage.Capacity()
}

// Storage returns the node's chain or nil if nothing was written yet.
func (n *Node) Storage() *chunkstore.Chain {
	return n.storage
}

// Children returns a copy of the children in name order
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) ChildCount() int {
	return len(n.children)
}

// Path returns the path of the node relative from its root.
// If the node is the root, returns ""
//
// Returns an error if the node or an ancestor has been deleted.
func (n *Node) Path() (string, error) {
	if n.isDel {
		return "", kfs.NewStaleHandleError(fmt.Sprintf("deleted node: %s", n.name))
	}
	if n.parent == nil {
		return "", nil
	}
	pPath, err := n.parent.Path()
	if err != nil {
		return "", err
	}
	if pPath == "" {
		return n.name, nil
	}
	return pPath + "/" + n.name, nil
}

// AddChild links child under n, keeping the children sorted by name.
// The tree is left unchanged on any error.
func (n *Node) AddChild(child *Node) error {
	if n.kind != kfs.DirNode {
		path, _ := n.Path()
		return kfs.NewNotADirectoryError(path)
	}
	if child == nil {
		return kfs.NewInvalidArgumentError("nil child")
	}
	if n.isDel || child.isDel {
		return kfs.NewStaleHandleError("deleted node")
	}
	if child.parent != nil {
		return kfs.NewInvalidArgumentError(fmt.Sprintf("%q already has a parent", child.name))
	}
	for a := n; a != nil; a = a.parent {
		if a == child {
			return kfs.NewInvalidArgumentError(fmt.Sprintf("%q cannot contain itself", child.name))
		}
	}

	// find the first sibling whose name is not smaller
	i := 0
	for ; i < len(n.children); i++ {
		sib := n.children[i].name
		if sib == child.name {
			return kfs.NewNameConflictError(child.name)
		}
		if sib > child.name {
			break
		}
	}

	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
	child.parent = n
	return nil
}

// GetChild returns the direct child called name.
func (n *Node) GetChild(name string) (child *Node, ok bool) {
	for _, c := range n.children {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// RemoveChild unlinks child from n and destroys its whole subtree, releasing
// every storage chain below it.
func (n *Node) RemoveChild(child *Node) error {
	idx := -1
	for i, c := range n.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		name := ""
		if child != nil {
			name = child.name
		}
		return kfs.NewNotFoundError(name)
	}

	n.children = append(n.children[:idx], n.children[idx+1:]...)
	child.parent = nil
	return child.destroy()
}

// Delete detaches n from its parent, if any, and destroys its subtree.
func (n *Node) Delete() error {
	if n.isDel {
		return kfs.NewStaleHandleError(fmt.Sprintf("deleted node: %s", n.name))
	}
	if n.parent != nil {
		return n.parent.RemoveChild(n)
	}
	return n.destroy()
}

// destroy releases n and its descendants depth first. Every node is marked
// deleted even when releasing a chain fails; the first error is returned.
func (n *Node) destroy() error {
	var firstErr error
	for _, c := range n.children {
		c.parent = nil
		if err := c.destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.children = nil
	if n.storage != nil {
		if err := n.storage.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		n.storage = nil
	}
	n.isDel = true
	return firstErr
}

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for a := other; a != nil; a = a.parent {
		if a == n {
			return true
		}
	}
	return false
}
