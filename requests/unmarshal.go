package requests

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/brettbedarf/kfs/sources"
)

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (kfs.NodeKind, error) {
	var meta struct {
		Type kfs.NodeKind `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalFileRequest handles file-specific unmarshaling with sources.
// Sources are built through reg and returned ordered by priority.
func UnmarshalFileRequest(data []byte, reg *sources.Registry) (*kfs.FileCreateRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if dto.Type != kfs.FileNode {
		return nil, fmt.Errorf("expected type %q, got %q", kfs.FileNode, dto.Type)
	}

	srcs, err := unmarshalSources(dto.Sources, data, reg)
	if err != nil {
		return nil, err
	}

	return &kfs.FileCreateRequest{
		NodeRequest: convertNodeDTO(dto.NodeRequestDTO),
		Sources:     srcs,
	}, nil
}

// UnmarshalDirRequest handles explicit directory unmarshaling (no sources)
func UnmarshalDirRequest(data []byte) (*kfs.DirCreateRequest, error) {
	var dto DirRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if dto.Type != kfs.DirNode {
		return nil, fmt.Errorf("expected type %q, got %q", kfs.DirNode, dto.Type)
	}

	return &kfs.DirCreateRequest{
		NodeRequest: convertNodeDTO(dto.NodeRequestDTO),
	}, nil
}

// Helper function to process sources array
func unmarshalSources(sourceDTOs []SourceConfigDTO, rawData []byte, reg *sources.Registry) ([]kfs.FileSource, error) {
	// Extract raw sources array from JSON for the source registry
	var rawMessage struct {
		Sources []json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(rawData, &rawMessage); err != nil {
		return nil, err
	}

	srcs := make([]kfs.FileSource, 0, len(rawMessage.Sources))
	for i, rawSource := range rawMessage.Sources {
		src, err := reg.NewSource(rawSource)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}

		srcs = append(srcs, kfs.FileSource{
			ContentSource: src,
			Priority:      util.ValueOr(sourceDTOs[i].Priority, i),
		})
	}
	slices.SortStableFunc(srcs, func(a, b kfs.FileSource) int {
		return a.Priority - b.Priority
	})

	return srcs, nil
}

// Conversion logic with defaults in the unmarshaling layer
func convertNodeDTO(dto NodeRequestDTO) kfs.NodeRequest {
	return kfs.NodeRequest{
		Path: dto.Path,
		Kind: dto.Type,
		UUID: util.ValueOr(dto.UUID, uuid.New().String()),
	}
}
