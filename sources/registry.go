// Package sources turns JSON source definitions into [kfs.ContentSource]
// values that can be copied into file nodes.
package sources

import (
	"encoding/json"
	"fmt"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// Registry maps a source "type" key to the provider that builds it.
type Registry struct {
	providers *xsync.Map[string, kfs.SourceProvider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, kfs.SourceProvider]()}
}

// Register ties a provider to a "type" key. The first registration for a key
// wins; Register reports whether provider was stored.
func (r *Registry) Register(sourceType string, provider kfs.SourceProvider) bool {
	logger := util.GetLogger("Registry.Register")

	_, loaded := r.providers.LoadOrStore(sourceType, provider)
	if loaded {
		logger.Warn().Str("type", sourceType).Msg("Provider already registered")
		return false
	}
	logger.Trace().Str("type", sourceType).Msg("Registered provider")
	return true
}

// GetProvider returns the provider registered for sourceType.
func (r *Registry) GetProvider(sourceType string) (kfs.SourceProvider, error) {
	p, ok := r.providers.Load(sourceType)
	if !ok {
		return nil, fmt.Errorf("no provider for source type %q", sourceType)
	}
	return p, nil
}

// Types returns the registered type keys in no particular order.
func (r *Registry) Types() []string {
	types := make([]string, 0, r.providers.Size())
	r.providers.Range(func(k string, _ kfs.SourceProvider) bool {
		types = append(types, k)
		return true
	})
	return types
}

// NewSource picks the provider named by the "type" field of raw and builds a
// source from the whole definition.
func (r *Registry) NewSource(raw []byte) (kfs.ContentSource, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("invalid source definition: %w", err)
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("source definition has no type")
	}
	p, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return p.NewSource(raw)
}
