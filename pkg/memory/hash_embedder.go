package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size used by HashEmbedder when none is given.
const DefaultHashDimension = 256

// HashEmbedder is a deterministic, offline Embedder based on hashed word and
// word-bigram features. It keeps the preference store usable without an
// embedding service.
type HashEmbedder struct {
	Dimension int
}

// NewHashEmbedder returns a HashEmbedder with the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{Dimension: dim}
}

// Embed implements Embedder. The result is L2-normalised; blank text yields
// the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := e.Dimension
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	vec := make([]float32, dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		addFeature(vec, tok, 1)
		if i > 0 {
			addFeature(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalize(vec)
	return vec, nil
}

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$'
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"for": {}, "on": {}, "with": {}, "is": {}, "are": {}, "i": {}, "me": {}, "my": {},
	"user": {}, "such": {}, "as": {}, "like": {}, "but": {}, "under": {},
}
