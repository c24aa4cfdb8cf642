// Package embedding holds the embedder-agnostic parts of the vector pipeline:
// normalization, dimension checks and a caching wrapper.
package embedding

import (
	"fmt"
	"math"

	"studyrag/internal/domain"
)

// Normalize returns v divided by its Euclidean norm. A zero vector is
// returned unchanged (the divisor is clamped to 1) so degenerate embeddings
// never turn into NaN. The input is not modified.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// NormalizeAll normalizes every vector of a batch.
func NormalizeAll(vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = Normalize(v)
	}
	return out
}

// CheckDimension verifies that every vector has the embedder's dimension.
func CheckDimension(e domain.Embedder, vectors ...[]float64) error {
	want := e.Dimension()
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: %s returned %d values for item %d, want %d",
				domain.ErrDimensionMismatch, e.Model(), len(v), i, want)
		}
	}
	return nil
}
