package requests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/brettbedarf/kfs/sources"
)

// Seed is a batch of create requests applied to a root at startup.
type Seed struct {
	Dirs  []*kfs.DirCreateRequest
	Files []*kfs.FileCreateRequest
}

// Unmarshal decodes a JSON array of dir and file requests.
func Unmarshal(data []byte, reg *sources.Registry) (*Seed, error) {
	logger := util.GetLogger("requests.Unmarshal")

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("seed must be a list of requests: %w", err)
	}

	seed := &Seed{}
	for i, raw := range raws {
		kind, err := GetNodeType(raw)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		switch kind {
		case kfs.DirNode:
			req, err := UnmarshalDirRequest(raw)
			if err != nil {
				return nil, fmt.Errorf("request %d: %w", i, err)
			}
			seed.Dirs = append(seed.Dirs, req)
		case kfs.FileNode:
			req, err := UnmarshalFileRequest(raw, reg)
			if err != nil {
				return nil, fmt.Errorf("request %d: %w", i, err)
			}
			seed.Files = append(seed.Files, req)
		default:
			return nil, fmt.Errorf("request %d: unknown type %q", i, kind)
		}
	}

	logger.Debug().Int("dirs", len(seed.Dirs)).Int("files", len(seed.Files)).Msg("Decoded seed requests")
	return seed, nil
}

// LoadFile reads a seed from path. Supports both YAML (.yaml, .yml) and JSON
// (.json) formats; YAML is converted to JSON so that source definitions reach
// the registry in a single format.
func LoadFile(path string, reg *sources.Registry) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal seed file: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert seed file: %w", err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unknown seed file extension: %s", path)
	}

	return Unmarshal(data, reg)
}
