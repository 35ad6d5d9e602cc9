package kfs

// NodeRequest has common fields embedded in concrete request types
type NodeRequest struct {
	Path string
	Kind NodeKind
	UUID string // Identifies the request in logs
}

// FileSource pairs a content source with its priority
type FileSource struct {
	ContentSource
	Priority int // Lower number = higher priority
}

// FileCreateRequest creates a file node and fills it from the first source
// that can be read
type FileCreateRequest struct {
	NodeRequest
	Sources []FileSource
}

// DirCreateRequest creates a directory node and any missing ancestors
type DirCreateRequest struct {
	NodeRequest
}
