// Package fetch retrieves raw items from sources through per-type
// adapters: feed (RSS/Atom), api (JSON endpoints), and scrape (site
// crawling). The pipeline only depends on the Adapter boundary.
package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonesrussell/godigest/internal/models"
)

// RawItem is one unprocessed item produced by a fetch adapter.
type RawItem struct {
	Type        models.ContentType
	Title       string
	Content     string
	Summary     string
	SourceURL   string
	PublishDate string
	Extra       map[string]any
}

// Adapter fetches raw items for one source type.
type Adapter interface {
	// Fetch retrieves the source's current items. Implementations must
	// honor ctx cancellation and deadlines.
	Fetch(ctx context.Context, source *models.Source) ([]RawItem, error)
}

// Registry maps source types to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.SourceType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.SourceType]Adapter),
	}
}

// Register binds an adapter to a source type, replacing any previous one.
func (r *Registry) Register(sourceType models.SourceType, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[sourceType] = adapter
}

// For returns the adapter for a source type.
func (r *Registry) For(sourceType models.SourceType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[sourceType]
	if !ok {
		return nil, fmt.Errorf("no fetch adapter registered for source type %q", sourceType)
	}
	return adapter, nil
}
