package filesystem

import (
	"fmt"
	"io"

	"github.com/brettbedarf/kfs"
	"github.com/zeebo/blake3"
)

// FileHandle is an open cursor over one node's content. The offset is an
// absolute byte position clamped to [0, capacity] that Read and Write
// advance.
type FileHandle struct {
	fh     uint64
	fs     *FileSystem
	node   *Node
	offset int
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*FileHandle)(nil)
	_ io.Closer          = (*FileHandle)(nil)
)

// HandleStat describes an open handle and the node behind it.
type HandleStat struct {
	ID       uint64
	Path     string
	Kind     kfs.NodeKind
	Capacity int
	Segments int
	Offset   int
}

// ID returns the handle's number in the FileSystem's table.
func (h *FileHandle) ID() uint64 {
	return h.fh
}

// Node returns the node the handle was opened on.
func (h *FileHandle) Node() *Node {
	return h.node
}

// Read copies content from the current offset into p.
// It returns 0, io.EOF when nothing was written yet or the offset is at the end.
func (h *FileHandle) Read(p []byte) (int, error) {
	if err := h.checkFile(); err != nil {
		return 0, err
	}
	chain := h.node.storage
	if chain == nil || h.offset >= chain.Capacity() {
		return 0, io.EOF
	}

	n, err := h.fs.store.ReadAt(chain, h.offset, p)
	h.offset += n
	return n, err
}

// Write copies p into the node's content at the current offset.
//
// The first non-empty write to a node allocates exactly len(p) bytes. Content
// never grows after that: bytes past the capacity are dropped and the short
// count is returned with io.ErrShortWrite.
func (h *FileHandle) Write(p []byte) (int, error) {
	if err := h.checkFile(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if h.node.storage == nil {
		if err := h.fs.allocate(h.node, len(p)); err != nil {
			return 0, err
		}
		// an empty node has capacity 0, so any other offset is stale
		h.offset = 0
	}

	n, err := h.fs.store.WriteAt(h.node.storage, h.offset, p)
	h.offset += n
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek sets the offset for the next Read or Write. The result is clamped to
// [0, capacity].
func (h *FileHandle) Seek(offset int64, whence int) (int64, error) {
	if err := h.checkFile(); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(h.offset)
	case io.SeekEnd:
		base = int64(h.node.Size())
	default:
		return 0, kfs.NewInvalidArgumentError(fmt.Sprintf("invalid whence %d", whence))
	}

	pos := max(0, min(base+offset, int64(h.node.Size())))
	h.offset = int(pos)
	return pos, nil
}

// Tell returns the current offset.
func (h *FileHandle) Tell() (int64, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	return int64(h.offset), nil
}

// Rewind moves the offset back to the start.
func (h *FileHandle) Rewind() error {
	_, err := h.Seek(0, io.SeekStart)
	return err
}

// Close invalidates the handle and drops it from the table. The node's content
// is left untouched. Close is the only call still accepted once the node has
// been deleted.
func (h *FileHandle) Close() error {
	if h.closed {
		return kfs.NewStaleHandleError(fmt.Sprintf("handle %d already closed", h.fh))
	}
	h.closed = true
	h.fs.handles.Delete(h.fh)
	return nil
}

// Stat reports the handle's position and the node's storage layout.
func (h *FileHandle) Stat() (HandleStat, error) {
	if err := h.check(); err != nil {
		return HandleStat{}, err
	}
	path, err := h.node.Path()
	if err != nil {
		return HandleStat{}, err
	}
	st := HandleStat{
		ID:       h.fh,
		Path:     path,
		Kind:     h.node.Kind(),
		Capacity: h.node.Size(),
		Offset:   h.offset,
	}
	if h.node.storage != nil {
		st.Segments = h.node.storage.Len()
	}
	return st, nil
}

// Sum returns the BLAKE3-256 digest of the node's whole content.
func (h *FileHandle) Sum() ([]byte, error) {
	if err := h.checkFile(); err != nil {
		return nil, err
	}
	if h.node.storage == nil {
		return blake3.New().Sum(nil), nil
	}
	return h.fs.store.Digest(h.node.storage)
}

// check fails for closed handles and deleted nodes
func (h *FileHandle) check() error {
	if h.closed {
		return kfs.NewStaleHandleError(fmt.Sprintf("handle %d is closed", h.fh))
	}
	if h.node.IsDel() {
		return kfs.NewStaleHandleError(fmt.Sprintf("node %q behind handle %d was deleted", h.node.Name(), h.fh))
	}
	return nil
}

// checkFile is like check but also requires a File node
func (h *FileHandle) checkFile() error {
	if err := h.check(); err != nil {
		return err
	}
	if !h.node.IsFile() {
		path, _ := h.node.Path()
		return kfs.NewWrongNodeTypeError(path, kfs.FileNode)
	}
	return nil
}
