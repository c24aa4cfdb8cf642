package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"studyrag/internal/domain"
)

// Cached wraps an embedder with an LRU cache keyed by text. Embedders are
// deterministic, so a cache hit is indistinguishable from a fresh call.
type Cached struct {
	inner domain.Embedder
	cache *lru.Cache[string, []float64]
}

// NewCached builds a cache holding up to size vectors.
func NewCached(inner domain.Embedder, size int) (*Cached, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedding: inner embedder is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("embedding: cache size must be greater than zero, got %d", size)
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: init cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Model() string  { return c.inner.Model() }
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Embed returns the cached vector for text, computing it on a miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.cache.Get(text); ok {
		return clone(v), nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, clone(v))
	return v, nil
}

// EmbedBatch serves hits from the cache and sends the distinct misses to the
// inner embedder in a single batch.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = clone(v)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return out, nil
	}
	vectors, err := c.inner.EmbedBatch(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(order) {
		return nil, fmt.Errorf("embedding: %s returned %d vectors for %d texts", c.inner.Model(), len(vectors), len(order))
	}
	for j, text := range order {
		c.cache.Add(text, clone(vectors[j]))
		for _, i := range missing[text] {
			out[i] = clone(vectors[j])
		}
	}
	return out, nil
}

// Len reports how many vectors are cached.
func (c *Cached) Len() int { return c.cache.Len() }

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

var _ domain.Embedder = (*Cached)(nil)
