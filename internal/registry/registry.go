// Package registry provides the CollectionRegistry: a lazily-initialized,
// concurrency-safe cache of per-category vector store handles.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/vectorstore"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// Registry hands out one ports.VectorStore per category, creating and
// caching the underlying Qdrant collection handle on first use.
type Registry struct {
	client    *qdrant.Client
	dimension int
	batchSize int

	mu    sync.RWMutex
	cache map[models.Category]ports.VectorStore
}

// New creates a Registry sharing a single Qdrant client connection across
// all category collections.
func New(client *qdrant.Client, dimension, batchSize int) *Registry {
	return &Registry{
		client:    client,
		dimension: dimension,
		batchSize: batchSize,
		cache:     make(map[models.Category]ports.VectorStore),
	}
}

// Get returns the VectorStore for category, creating it on first access.
// Double-checked locking avoids paying the write lock on the hot path once
// every category has been resolved at least once.
func (r *Registry) Get(category models.Category) (ports.VectorStore, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category: %s", category)
	}

	r.mu.RLock()
	if vs, ok := r.cache[category]; ok {
		r.mu.RUnlock()
		return vs, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if vs, ok := r.cache[category]; ok {
		return vs, nil
	}

	vs := vectorstore.NewStore(r.client, vectorstore.Config{
		CollectionName: category.CollectionName(),
		Dimension:      r.dimension,
		BatchSize:      r.batchSize,
	})
	r.cache[category] = vs
	return vs, nil
}

// EnsureAll eagerly creates every category's collection. The daemon's
// health handler calls it, so a health check also makes sure every
// collection exists.
func (r *Registry) EnsureAll(ctx context.Context) error {
	for _, cat := range models.Categories {
		vs, err := r.Get(cat)
		if err != nil {
			return err
		}
		if ensurer, ok := vs.(interface{ EnsureCollection(context.Context) error }); ok {
			if err := ensurer.EnsureCollection(ctx); err != nil {
				return fmt.Errorf("ensure collection for %s: %w", cat, err)
			}
		}
	}
	return nil
}

// Categories returns the categories currently cached (for admin stats).
func (r *Registry) Categories() []models.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Category, 0, len(r.cache))
	for cat := range r.cache {
		out = append(out, cat)
	}
	return out
}
