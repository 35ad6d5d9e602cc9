package requests

import "github.com/brettbedarf/kfs"

// NodeRequestDTO is the JSON representation of [kfs.NodeRequest]
type NodeRequestDTO struct {
	Path string       `json:"path"`
	Type kfs.NodeKind `json:"type"`
	UUID *string      `json:"uuid,omitempty"` // Optional UUID to trace the request in logs
}

// FileRequestDTO is the JSON representation of [kfs.FileCreateRequest]
type FileRequestDTO struct {
	NodeRequestDTO
	Sources []SourceConfigDTO `json:"sources"`
}

type DirRequestDTO struct {
	NodeRequestDTO
}

// SourceConfigDTO is the JSON representation of static source fields
//
// Additional fields depend on the "type" value:
//
// Ex. For type="http" (see [sources.HTTPSource]):
//
//	URL     string            `json:"url"`
//	Method  *string           `json:"method,omitempty"`
//	Headers map\[string\]string `json:"headers,omitempty"`
//
// See the sources package for the fields of each built-in type.
type SourceConfigDTO struct {
	Type     string `json:"type"`
	Priority *int   `json:"priority,omitempty"` // Lower number = higher priority, defaults to array index
}
