package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/brettbedarf/kfs"
)

// LocalSource reads a regular file from the host filesystem.
type LocalSource struct {
	Path string `json:"path"`
}

type LocalProvider struct{}

func RegisterLocal(r *Registry) {
	r.Register(LocalSourceType, &LocalProvider{})
}

func (p *LocalProvider) NewSource(raw []byte) (kfs.ContentSource, error) {
	var src LocalSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("invalid local source: %w", err)
	}
	if src.Path == "" {
		return nil, fmt.Errorf("local source requires a path")
	}
	return &src, nil
}

// NewLocalFile returns a source for the host file at path.
func NewLocalFile(path string) *LocalSource {
	return &LocalSource{Path: path}
}

func (s *LocalSource) Open(context.Context) (io.ReadCloser, error) {
	if _, err := s.stat(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	return f, nil
}

func (s *LocalSource) Size(context.Context) (int64, error) {
	fi, err := s.stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *LocalSource) stat() (os.FileInfo, error) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.Path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", s.Path)
	}
	return fi, nil
}

var (
	_ kfs.ContentSource  = (*LocalSource)(nil)
	_ kfs.SourceProvider = (*LocalProvider)(nil)
)
