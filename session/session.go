// Package session holds the state of one interactive kfs session: the named
// roots, the selected root and the working directory.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/config"
	"github.com/brettbedarf/kfs/filesystem"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/brettbedarf/kfs/sources"
)

// ErrSourceUnavailable wraps failures to open or read a content source.
var ErrSourceUnavailable = errors.New("can't access source")

// Session contains the namespace state and operations shared by the shell and
// the command line.
type Session struct {
	ID      uuid.UUID
	cfg     *config.Config
	fs      *filesystem.FileSystem
	sources *sources.Registry
	roots   []*filesystem.Node
	current int // ordinal of the selected root; 0 when none
	cwd     *filesystem.Node
}

// New creates a Session for cfg. A nil reg gets every built-in source type.
func New(cfg *config.Config, reg *sources.Registry) *Session {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if reg == nil {
		reg = sources.NewRegistry()
		sources.RegisterBuiltins(reg)
	}
	s := &Session{
		ID:      uuid.New(),
		cfg:     cfg,
		fs:      filesystem.NewFS(cfg),
		sources: reg,
	}
	logger := s.logger("Session.New")
	logger.Debug().Strs("sources", reg.Types()).Int("max_roots", cfg.MaxRoots).Msg("Session created")
	return s
}

func (s *Session) Config() *config.Config {
	return s.cfg
}

func (s *Session) FS() *filesystem.FileSystem {
	return s.fs
}

func (s *Session) Sources() *sources.Registry {
	return s.sources
}

func (s *Session) logger(component string) util.Logger {
	return util.GetLogger(component).With().Str("session", s.ID.String()).Logger()
}

// CreateRoot adds a new empty root directory and returns its ordinal.
// The new root is not selected.
func (s *Session) CreateRoot(name string) (int, error) {
	logger := s.logger("Session.CreateRoot")

	if len(s.roots) >= s.cfg.MaxRoots {
		err := kfs.NewResourceExhaustedError(fmt.Sprintf("at most %d roots", s.cfg.MaxRoots))
		logger.Warn().Err(err).Str("name", name).Msg("Root limit reached")
		return 0, err
	}
	for _, r := range s.roots {
		if r.Name() == name {
			return 0, kfs.NewNameConflictError(name)
		}
	}
	root, err := filesystem.NewNode(name, kfs.DirNode)
	if err != nil {
		return 0, err
	}

	s.roots = append(s.roots, root)
	logger.Debug().Str("name", name).Int("ordinal", len(s.roots)).Msg("Created root")
	return len(s.roots), nil
}

// DeleteRoot deletes the root at ordinal ord and its whole tree. Later roots
// move down one ordinal. Deleting the selected root clears the selection.
func (s *Session) DeleteRoot(ord int) error {
	logger := s.logger("Session.DeleteRoot")

	root, err := s.rootAt(ord)
	if err != nil {
		return err
	}

	s.roots = append(s.roots[:ord-1], s.roots[ord:]...)
	switch {
	case s.current == ord:
		s.current = 0
		s.cwd = nil
	case s.current > ord:
		s.current--
	}

	if err := root.Delete(); err != nil {
		logger.Error().Err(err).Str("name", root.Name()).Msg("Failed to release root storage")
		return err
	}
	logger.Debug().Str("name", root.Name()).Int("ordinal", ord).Msg("Deleted root")
	return nil
}

// SetRoot selects the root at ordinal ord and moves the working directory to it.
func (s *Session) SetRoot(ord int) error {
	root, err := s.rootAt(ord)
	if err != nil {
		return err
	}
	s.current = ord
	s.cwd = root
	return nil
}

// Roots returns the roots in creation order; ordinals start at 1.
func (s *Session) Roots() []*filesystem.Node {
	out := make([]*filesystem.Node, len(s.roots))
	copy(out, s.roots)
	return out
}

// Root returns the selected root and its ordinal.
func (s *Session) Root() (*filesystem.Node, int, error) {
	if s.current == 0 {
		return nil, 0, kfs.NewNoRootError()
	}
	return s.roots[s.current-1], s.current, nil
}

// Cwd returns the working directory.
func (s *Session) Cwd() (*filesystem.Node, error) {
	if s.cwd == nil {
		return nil, kfs.NewNoRootError()
	}
	return s.cwd, nil
}

// Pwd returns the absolute path of the working directory.
func (s *Session) Pwd() (string, error) {
	cwd, err := s.Cwd()
	if err != nil {
		return "", err
	}
	p, err := cwd.Path()
	if err != nil {
		return "", err
	}
	return "/" + p, nil
}

// Resolve looks p up from the selected root when it starts with "/" and from
// the working directory otherwise. "." and ".." are navigation tokens here;
// ".." above the root is not found.
func (s *Session) Resolve(p string) (*filesystem.Node, error) {
	cwd, err := s.Cwd()
	if err != nil {
		return nil, err
	}
	cur := cwd
	if strings.HasPrefix(p, "/") {
		cur, _, _ = s.Root()
	}

	for _, name := range filesystem.SplitPath(p) {
		switch name {
		case ".":
			continue
		case "..":
			if cur.Parent() == nil {
				return nil, kfs.NewNotFoundError(p)
			}
			cur = cur.Parent()
		default:
			child, ok := cur.GetChild(name)
			if !ok {
				return nil, kfs.NewNotFoundError(p)
			}
			cur = child
		}
	}
	return cur, nil
}

// Cd changes the working directory.
func (s *Session) Cd(p string) error {
	if _, err := s.Cwd(); err != nil {
		return err
	}
	if p == "" {
		return kfs.NewInvalidArgumentError("cd needs a directory")
	}
	node, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if !node.IsDir() {
		return kfs.NewWrongNodeTypeError(p, kfs.DirNode)
	}
	s.cwd = node
	return nil
}

// Mkdir creates a directory; its parent must already exist.
func (s *Session) Mkdir(p string) (*filesystem.Node, error) {
	return s.create(p, kfs.DirNode)
}

// Mkfile creates an empty file; its parent must already exist.
func (s *Session) Mkfile(p string) (*filesystem.Node, error) {
	return s.create(p, kfs.FileNode)
}

func (s *Session) create(p string, kind kfs.NodeKind) (*filesystem.Node, error) {
	logger := s.logger("Session.create")

	dir, name := splitParent(p)
	parent, err := s.Resolve(dir)
	if err != nil {
		return nil, err
	}
	node, err := filesystem.NewNode(name, kind)
	if err != nil {
		return nil, err
	}
	if err := parent.AddChild(node); err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Failed to add node")
		return nil, err
	}
	logger.Trace().Str("path", p).Str("kind", string(kind)).Msg("Created node")
	return node, nil
}

// MkdirAll creates every missing directory along p and returns the leaf, like
// `mkdir -p`. An existing directory is not an error.
func (s *Session) MkdirAll(p string) (*filesystem.Node, error) {
	cur, err := s.Cwd()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(p, "/") {
		cur, _, _ = s.Root()
	}

	for _, name := range filesystem.SplitPath(p) {
		if child, ok := cur.GetChild(name); ok {
			if !child.IsDir() {
				return nil, kfs.NewWrongNodeTypeError(p, kfs.DirNode)
			}
			cur = child
			continue
		}
		child, err := filesystem.NewNode(name, kfs.DirNode)
		if err != nil {
			return nil, err
		}
		if err := cur.AddChild(child); err != nil {
			return nil, err
		}
		cur = child
	}
	return cur, nil
}

// Rmdir removes a directory and everything below it.
func (s *Session) Rmdir(p string) error {
	return s.remove(p, kfs.DirNode)
}

// Rm removes a file and releases its content.
func (s *Session) Rm(p string) error {
	return s.remove(p, kfs.FileNode)
}

func (s *Session) remove(p string, kind kfs.NodeKind) error {
	logger := s.logger("Session.remove")

	if p == "" {
		return kfs.NewInvalidArgumentError("missing path")
	}
	node, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if node.Kind() != kind {
		return kfs.NewWrongNodeTypeError(p, kind)
	}
	parent := node.Parent()
	if parent == nil {
		return kfs.NewInvalidArgumentError("roots are removed with deleteroot")
	}

	if node.Contains(s.cwd) {
		s.cwd = parent
	}
	if err := parent.RemoveChild(node); err != nil {
		logger.Error().Err(err).Str("path", p).Msg("Failed to remove node")
		return err
	}
	logger.Debug().Str("path", p).Str("kind", string(kind)).Msg("Removed node")
	return nil
}

// List returns the children of the directory at p, or the node itself when p
// names a file. An empty p lists the working directory.
func (s *Session) List(p string) ([]*filesystem.Node, error) {
	node, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	if node.IsFile() {
		return []*filesystem.Node{node}, nil
	}
	return node.Children(), nil
}

// Open returns a new handle on the node at p.
func (s *Session) Open(p string) (*filesystem.FileHandle, error) {
	node, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(node, "")
}

// CopyTo replaces the content of the file at p with everything src yields.
func (s *Session) CopyTo(ctx context.Context, p string, src kfs.ContentSource) (int, error) {
	logger := s.logger("Session.CopyTo")

	node, err := s.Resolve(p)
	if err != nil {
		return 0, err
	}
	if !node.IsFile() {
		return 0, kfs.NewWrongNodeTypeError(p, kfs.FileNode)
	}

	data, err := readSource(ctx, src)
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Failed to read source")
		return 0, err
	}

	n, err := s.fs.Replace(node, data)
	if err != nil {
		logger.Error().Err(err).Str("path", p).Int("size", len(data)).Msg("Failed to write content")
		return n, err
	}
	logger.Debug().Str("path", p).Int("size", n).Msg("Copied content")
	return n, nil
}

func readSource(ctx context.Context, src kfs.ContentSource) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return data, nil
}

// Close closes every handle and deletes every root.
func (s *Session) Close() error {
	logger := s.logger("Session.Close")

	s.fs.CloseAll()
	var errs []error
	for _, r := range s.roots {
		if err := r.Delete(); err != nil {
			errs = append(errs, err)
		}
	}
	s.roots = nil
	s.current = 0
	s.cwd = nil

	err := errors.Join(errs...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to release roots")
	}
	logger.Debug().Msg("Session closed")
	return err
}

func (s *Session) rootAt(ord int) (*filesystem.Node, error) {
	if ord < 1 || ord > len(s.roots) {
		return nil, kfs.NewInvalidArgumentError(fmt.Sprintf("root %d out of range 1..%d", ord, len(s.roots)))
	}
	return s.roots[ord-1], nil
}

// splitParent returns the directory part and the last component of p
func splitParent(p string) (string, string) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && strings.HasPrefix(p, "/") {
		return "/", ""
	}
	dir, name := path.Split(trimmed)
	return dir, name
}
