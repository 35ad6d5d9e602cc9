// Package kfs contains core domain types and interfaces for the kfs namespace:
// node kinds, the shared error taxonomy and content source abstractions.
package kfs

import (
	"context"
	"io"
)

// ContentSource produces bytes that can be copied into a file node.
// Instances are 1:1 with a single source definition (a host file, a URL, an
// inline literal).
type ContentSource interface {
	// Opens the content and returns a Reader
	Open(ctx context.Context) (io.ReadCloser, error)

	// Returns the size of the content in bytes or -1 if unknown
	Size(ctx context.Context) (int64, error)
}

// SourceProvider is a factory for concrete [ContentSource] implementations
// generated from a raw JSON source definition.
type SourceProvider interface {
	NewSource(raw []byte) (ContentSource, error)
}
