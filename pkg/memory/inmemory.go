// Package memory provides the user preference store, its vector backends and
// embedding helpers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type collection struct {
	dim    uint64
	points []Point
	index  map[string]int
}

// InMemoryStore is a process-local VectorStore.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewInMemoryStore creates an empty in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]*collection)}
}

// CreateCollection implements VectorStore.
func (s *InMemoryStore) CreateCollection(_ context.Context, name string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.dim != vectorSize {
			return fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, c.dim, vectorSize)
		}
		return nil
	}
	s.collections[name] = &collection{dim: vectorSize, index: make(map[string]int)}
	return nil
}

// Upsert implements VectorStore.
func (s *InMemoryStore) Upsert(_ context.Context, name string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	for _, p := range points {
		if uint64(len(p.Vector)) != c.dim {
			return fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, c.dim, len(p.Vector))
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		if i, exists := c.index[p.ID]; exists {
			c.points[i] = p
			continue
		}
		c.index[p.ID] = len(c.points)
		c.points = append(c.points, p)
	}
	return nil
}

// Search implements VectorStore.
func (s *InMemoryStore) Search(_ context.Context, name string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if uint64(len(vector)) != c.dim {
		return nil, fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, c.dim, len(vector))
	}
	return rank(c.points, vector, limit, scoreThreshold), nil
}

// List implements VectorStore.
func (s *InMemoryStore) List(_ context.Context, name string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out, nil
}

// Count implements VectorStore.
func (s *InMemoryStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return len(c.points), nil
}

// rank scores points against vector and returns the best limit results,
// ties broken by insertion order.
func rank(points []Point, vector []float32, limit int, scoreThreshold float32) []SearchResult {
	if limit <= 0 {
		return nil
	}
	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		score := CosineSimilarity(vector, p.Vector)
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		results = append(results, SearchResult{ID: p.ID, Score: score, Point: p})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
