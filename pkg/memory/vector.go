package memory

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrEmptyText is returned when a blank preference is added.
	ErrEmptyText = errors.New("memory: text is empty")
	// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
	// ErrCollectionNotFound is returned when a collection has not been created.
	ErrCollectionNotFound = errors.New("memory: collection not found")
)

// VectorStore defines the interface for a vector database.
//
// Scores are cosine similarities; callers convert them to cosine distance
// (1 - score).
type VectorStore interface {
	// CreateCollection creates a new collection if it doesn't exist. Creating
	// an existing collection with a different dimension fails with
	// ErrDimensionMismatch.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	// Upsert adds or updates points in the vector store.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit points ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
	// List returns every point of a collection in insertion order.
	List(ctx context.Context, collection string) ([]Point, error)
	// Count returns the number of points in a collection.
	Count(ctx context.Context, collection string) (int, error)
}

// Point represents a data point in the vector store.
type Point struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// Text returns the "text" payload entry, if any.
func (p Point) Text() string {
	s, _ := p.Payload["text"].(string)
	return s
}

// SearchResult represents a result from a vector search.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	// Embed converts a text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors and mismatched lengths score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// CosineDistance returns 1 - cosine similarity, clamped to [0, 2].
func CosineDistance(a, b []float32) float32 {
	return scoreToDistance(CosineSimilarity(a, b))
}

func scoreToDistance(score float32) float32 {
	d := 1 - score
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}
