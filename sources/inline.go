package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/brettbedarf/kfs"
)

// InlineSource holds its content in the definition itself. Data is base64 in
// JSON and wins over Text when both are set.
type InlineSource struct {
	Text string `json:"text,omitempty"`
	Data []byte `json:"data,omitempty"`
}

type InlineProvider struct{}

func RegisterInline(r *Registry) {
	r.Register(InlineSourceType, &InlineProvider{})
}

func (p *InlineProvider) NewSource(raw []byte) (kfs.ContentSource, error) {
	var src InlineSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("invalid inline source: %w", err)
	}
	return &src, nil
}

// NewInlineText returns a source serving text.
func NewInlineText(text string) *InlineSource {
	return &InlineSource{Text: text}
}

func (s *InlineSource) content() []byte {
	if s.Data != nil {
		return s.Data
	}
	return []byte(s.Text)
}

func (s *InlineSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.content())), nil
}

func (s *InlineSource) Size(context.Context) (int64, error) {
	return int64(len(s.content())), nil
}

var (
	_ kfs.ContentSource  = (*InlineSource)(nil)
	_ kfs.SourceProvider = (*InlineProvider)(nil)
)
