package kfs

// NodeKind valid kinds are FileNode "file", DirNode "dir"
type NodeKind string

const (
	FileNode NodeKind = "file"
	DirNode  NodeKind = "dir"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	return k == FileNode || k == DirNode
}

// NodeInfo provides read-only access to node information for external consumers
type NodeInfo interface {
	// Name returns the node's name (last path component)
	Name() string

	// Kind returns whether the node is a file or a directory
	Kind() NodeKind

	// Path returns the slash-joined path from the node's root
	Path() (string, error)

	// Size returns the storage capacity of a file node in bytes; 0 for
	// directories and files that were never written
	Size() int

	// IsDel returns true if the node has been deleted
	IsDel() bool
}
