package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	kerrors "github.com/jllopis/shopper/pkg/errors"
)

// DefaultCollection is the collection holding user preferences.
const DefaultCollection = "user_preferences"

// PreferenceRecord is one stored preference statement.
type PreferenceRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	// Distance is the cosine distance to the query, set by Nearest.
	Distance float32 `json:"distance"`
}

// PreferenceStore is an append-only semantic store of free-text preferences.
// The same Embedder is used for writes and queries.
type PreferenceStore struct {
	store      VectorStore
	embedder   Embedder
	collection string
	logger     *slog.Logger

	initMu      sync.Mutex
	initialized bool
}

// PreferenceOption configures a PreferenceStore.
type PreferenceOption func(*PreferenceStore)

// WithCollection overrides the collection name.
func WithCollection(name string) PreferenceOption {
	return func(p *PreferenceStore) {
		if name != "" {
			p.collection = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PreferenceOption {
	return func(p *PreferenceStore) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPreferenceStore wires a vector store and an embedder.
func NewPreferenceStore(store VectorStore, embedder Embedder, opts ...PreferenceOption) (*PreferenceStore, error) {
	if store == nil {
		return nil, kerrors.New(kerrors.CodeInvalidInput, "vector store is required", nil)
	}
	if embedder == nil {
		return nil, kerrors.New(kerrors.CodeInvalidInput, "embedder is required", nil)
	}
	p := &PreferenceStore{
		store:      store,
		embedder:   embedder,
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Collection returns the collection name.
func (p *PreferenceStore) Collection() string { return p.collection }

// Initialize ensures the collection exists with the embedder dimension.
func (p *PreferenceStore) Initialize(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	if p.initialized {
		return nil
	}
	vec, err := p.embedder.Embed(ctx, "hello")
	if err != nil {
		return wrapMemoryError("probe embedding dimension", err)
	}
	if len(vec) == 0 {
		return kerrors.New(kerrors.CodeMemoryError, "embedder returned an empty vector", nil)
	}
	if err := p.store.CreateCollection(ctx, p.collection, uint64(len(vec))); err != nil {
		return wrapMemoryError("create collection", err).WithContext("collection", p.collection)
	}
	p.initialized = true
	p.logger.Debug("memory.initialized",
		slog.String("collection", p.collection),
		slog.Int("dimension", len(vec)),
	)
	return nil
}

// Add stores a preference and returns its id. Blank text is rejected with
// ErrEmptyText and leaves the store untouched.
func (p *PreferenceStore) Add(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if err := p.Initialize(ctx); err != nil {
		return "", err
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return "", wrapMemoryError("embed preference", err)
	}
	id := newMemoryID()
	now := time.Now()
	point := Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]any{
			"memory_id": id,
			"text":      text,
			"timestamp": now.Unix(),
		},
		Timestamp: now.Unix(),
	}
	if err := p.store.Upsert(ctx, p.collection, []Point{point}); err != nil {
		return "", wrapMemoryError("store preference", err).WithContext("id", id)
	}
	p.logger.Info("memory.add",
		slog.String("collection", p.collection),
		slog.String("id", id),
	)
	return id, nil
}

// All returns every stored preference text in insertion order.
func (p *PreferenceStore) All(ctx context.Context) ([]string, error) {
	records, err := p.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Text)
	}
	return out, nil
}

// Records returns every stored preference in insertion order.
func (p *PreferenceStore) Records(ctx context.Context) ([]PreferenceRecord, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}
	points, err := p.store.List(ctx, p.collection)
	if err != nil {
		return nil, wrapMemoryError("list preferences", err)
	}
	out := make([]PreferenceRecord, 0, len(points))
	for _, pt := range points {
		out = append(out, toRecord(pt, 0))
	}
	return out, nil
}

// Nearest returns at most k preferences ordered by ascending cosine distance
// to query.
func (p *PreferenceStore) Nearest(ctx context.Context, query string, k int) ([]PreferenceRecord, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, wrapMemoryError("embed query", err)
	}
	results, err := p.store.Search(ctx, p.collection, vec, k, 0)
	if err != nil {
		return nil, wrapMemoryError("search preferences", err)
	}
	out := make([]PreferenceRecord, 0, len(results))
	for _, r := range results {
		out = append(out, toRecord(r.Point, scoreToDistance(r.Score)))
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Count returns the number of stored preferences.
func (p *PreferenceStore) Count(ctx context.Context) (int, error) {
	if err := p.Initialize(ctx); err != nil {
		return 0, err
	}
	n, err := p.store.Count(ctx, p.collection)
	if err != nil {
		return 0, wrapMemoryError("count preferences", err)
	}
	return n, nil
}

// Seed adds the given texts, skipping blanks and texts already stored.
// It returns the ids of the newly added preferences.
func (p *PreferenceStore) Seed(ctx context.Context, texts []string) ([]string, error) {
	existing, err := p.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	var ids []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		id, err := p.Add(ctx, t)
		if err != nil {
			return ids, err
		}
		seen[t] = struct{}{}
		ids = append(ids, id)
	}
	p.logger.Info("memory.seed",
		slog.String("collection", p.collection),
		slog.Int("added", len(ids)),
	)
	return ids, nil
}

func toRecord(pt Point, distance float32) PreferenceRecord {
	id := pt.ID
	if mid, ok := pt.Payload["memory_id"].(string); ok && mid != "" {
		id = mid
	}
	return PreferenceRecord{
		ID:        id,
		Text:      pt.Text(),
		Embedding: pt.Vector,
		CreatedAt: time.Unix(pt.Timestamp, 0).UTC(),
		Distance:  distance,
	}
}

func newMemoryID() string {
	return "mem_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func wrapMemoryError(op string, err error) *kerrors.Error {
	return kerrors.New(kerrors.CodeMemoryError, op+" failed", err).WithRecoverable(true)
}
