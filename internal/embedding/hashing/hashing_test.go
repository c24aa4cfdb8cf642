package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

func TestNewEmbedder_RejectsBadDimension(t *testing.T) {
	_, err := NewEmbedder(0)
	assert.Error(t, err)
}

func TestEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e, err := NewEmbedder(DefaultDimension)
	require.NoError(t, err)

	v1, err := e.Embed(ctx, "Go is great for AI services and concurrent pipelines.")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "Go is great for AI services and concurrent pipelines.")
	require.NoError(t, err)

	assert.Len(t, v1, DefaultDimension)
	assert.Equal(t, v1, v2)
	assert.InDelta(t, 1.0, norm(v1), 1e-9)
	assert.Equal(t, "hashing-v1", e.Model())
}

func TestEmbedder_BatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	e, err := NewEmbedder(64)
	require.NoError(t, err)
	texts := []string{"cats are mammals", "", "stars are hot", "cats are mammals"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))
	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestEmbedder_StopwordsOnlyIsZeroVector(t *testing.T) {
	e, err := NewEmbedder(32)
	require.NoError(t, err)
	v, err := e.Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 32), v)
}

func TestEmbedder_SharedTermsScoreHigher(t *testing.T) {
	ctx := context.Background()
	e, err := NewEmbedder(DefaultDimension)
	require.NoError(t, err)

	query, err := e.Embed(ctx, "mammal pets")
	require.NoError(t, err)
	cats, err := e.Embed(ctx, "cats are mammals")
	require.NoError(t, err)
	stars, err := e.Embed(ctx, "stars are hot")
	require.NoError(t, err)

	assert.Greater(t, dot(query, cats), dot(query, stars))
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"mammals":  "mammal",
		"pets":     "pet",
		"stories":  "story",
		"class":    "class",
		"status":   "status",
		"analysis": "analysis",
		"gas":      "gas",
	}
	for in, want := range tests {
		assert.Equal(t, want, stem(in), in)
	}
}
