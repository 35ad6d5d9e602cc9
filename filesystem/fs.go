package filesystem

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/chunkstore"
	"github.com/brettbedarf/kfs/config"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// FileSystem owns the content store and the table of open file handles.
// Trees themselves are owned by their roots; FileSystem only binds handles to
// nodes and nodes to storage.
type FileSystem struct {
	cfg     *config.Config
	store   *chunkstore.Store
	lastFH  atomic.Uint64                    // Last handle ID assigned; IDs are never reused
	handles *xsync.Map[uint64, *FileHandle] // open handles by ID
}

// NewFS creates a FileSystem backed by a fresh store sized from cfg.
// A nil cfg uses [config.NewDefaultConfig].
func NewFS(cfg *config.Config) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	store := chunkstore.New(&chunkstore.Config{
		SegmentSize: cfg.SegmentSize,
		MaxBytes:    cfg.MaxStoreBytes,
	})
	return &FileSystem{
		cfg:     cfg,
		store:   store,
		handles: xsync.NewMap[uint64, *FileHandle](),
	}
}

// Store returns the chunk store holding every file's content.
func (fs *FileSystem) Store() *chunkstore.Store {
	return fs.store
}

// Open resolves path from root and returns a new handle positioned at offset 0.
// Directories can be opened but reading or writing them fails. Opening never
// allocates storage.
func (fs *FileSystem) Open(root *Node, path string) (*FileHandle, error) {
	logger := util.GetLogger("FileSystem.Open")

	node, err := ResolvePath(root, path)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Failed to resolve path")
		return nil, err
	}

	id := fs.lastFH.Add(1)
	if id > uint64(fs.cfg.MaxFH) {
		fs.lastFH.Add(^uint64(0))
		err := kfs.NewResourceExhaustedError(fmt.Sprintf("no file handle IDs left (max %d)", fs.cfg.MaxFH))
		logger.Error().Err(err).Str("path", path).Msg("Failed to open")
		return nil, err
	}

	fh := &FileHandle{fh: id, fs: fs, node: node}
	fs.handles.Store(id, fh)
	logger.Debug().Uint64("fh", id).Str("path", path).Str("kind", string(node.Kind())).Msg("Opened handle")
	return fh, nil
}

// Handle returns the open handle with the given ID.
func (fs *FileSystem) Handle(id uint64) (*FileHandle, error) {
	fh, ok := fs.handles.Load(id)
	if !ok {
		return nil, kfs.NewStaleHandleError(fmt.Sprintf("no open handle %d", id))
	}
	return fh, nil
}

// Handles returns every open handle ordered by ID.
func (fs *FileSystem) Handles() []*FileHandle {
	out := make([]*FileHandle, 0, fs.handles.Size())
	fs.handles.Range(func(_ uint64, fh *FileHandle) bool {
		out = append(out, fh)
		return true
	})
	slices.SortFunc(out, func(a, b *FileHandle) int {
		switch {
		case a.fh < b.fh:
			return -1
		case a.fh > b.fh:
			return 1
		}
		return 0
	})
	return out
}

// CloseAll closes every open handle.
func (fs *FileSystem) CloseAll() {
	for _, fh := range fs.Handles() {
		_ = fh.Close()
	}
}

// allocate gives node a chain of exactly size bytes
func (fs *FileSystem) allocate(node *Node, size int) error {
	logger := util.GetLogger("FileSystem.allocate")

	chain, err := fs.store.Allocate(size)
	if err != nil {
		path, _ := node.Path()
		logger.Error().Err(err).Str("path", path).Int("size", size).Msg("Failed to allocate storage")
		return err
	}
	node.storage = chain
	logger.Trace().Str("name", node.Name()).Int("size", size).Int("segments", chain.Len()).Msg("Allocated storage")
	return nil
}

// Discard releases node's storage so that the next write allocates afresh.
// Handles open on node stay open and are moved back to offset 0.
func (fs *FileSystem) Discard(node *Node) error {
	if err := checkContentNode(node); err != nil {
		return err
	}
	if node.storage == nil {
		return nil
	}
	err := node.storage.Release()
	node.storage = nil
	fs.rewindHandles(node)
	return err
}

// Replace swaps node's content for data. The new chain is allocated before the
// old one is dropped, so when the store cannot hold data the node keeps its
// previous content. Handles open on node are moved back to offset 0.
func (fs *FileSystem) Replace(node *Node, data []byte) (int, error) {
	logger := util.GetLogger("FileSystem.Replace")

	if err := checkContentNode(node); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fs.Discard(node)
	}

	var (
		chain *chunkstore.Chain
		err   error
	)
	if node.storage == nil {
		chain, err = fs.store.Allocate(len(data))
	} else {
		chain, err = fs.store.Reallocate(node.storage, len(data))
	}
	if err != nil {
		logger.Error().Err(err).Str("name", node.Name()).Int("size", len(data)).Msg("Failed to allocate storage")
		return 0, err
	}
	node.storage = chain
	fs.rewindHandles(node)

	n, err := fs.store.Write(chain, data)
	if err != nil {
		return n, err
	}
	logger.Trace().Str("name", node.Name()).Int("size", n).Int("segments", chain.Len()).Msg("Replaced content")
	return n, nil
}

// rewindHandles resets the offset of every open handle on node
func (fs *FileSystem) rewindHandles(node *Node) {
	fs.handles.Range(func(_ uint64, fh *FileHandle) bool {
		if fh.node == node {
			fh.offset = 0
		}
		return true
	})
}

func checkContentNode(node *Node) error {
	if !node.IsFile() {
		path, _ := node.Path()
		return kfs.NewWrongNodeTypeError(path, kfs.FileNode)
	}
	if node.IsDel() {
		return kfs.NewStaleHandleError(fmt.Sprintf("deleted node: %s", node.Name()))
	}
	return nil
}
