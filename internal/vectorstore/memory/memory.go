package memory

import (
	"fmt"
	"sort"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

// Index is an in-memory flat index using brute-force inner product.
// Vectors are assumed L2-normalized, so scores are cosine similarities.
// The zero value and nil are valid empty indexes.
type Index struct {
	dimension int
	vectors   [][]float64
}

// Build creates an index over vectors; ordinal i refers to vectors[i].
// The vectors are copied.
func Build(vectors [][]float64) (*Index, error) {
	if len(vectors) == 0 {
		return &Index{}, nil
	}
	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, fmt.Errorf("memory: %w: vector 0 is empty", domain.ErrDimensionMismatch)
	}
	stored := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("memory: %w: vector %d has %d values, want %d",
				domain.ErrDimensionMismatch, i, len(v), dimension)
		}
		stored[i] = append([]float64(nil), v...)
	}
	return &Index{dimension: dimension, vectors: stored}, nil
}

// Len returns the number of indexed vectors.
func (s *Index) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vectors)
}

// Dimension returns the vector size, or 0 for an empty index.
func (s *Index) Dimension() int {
	if s == nil {
		return 0
	}
	return s.dimension
}

// Search returns the topK best matches by descending score, ties broken by
// lower ordinal. topK is clamped to the index size; an empty index or a
// non-positive topK yields no matches.
func (s *Index) Search(vector []float64, topK int) ([]domain.Match, error) {
	if s.Len() == 0 || topK <= 0 {
		return []domain.Match{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("memory: %w: query has %d values, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = clamp(dot(s.vectors[i], vector))
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.Match, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		results = append(results, domain.Match{Ordinal: j, Score: scores[j]})
	}
	return results, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// clamp absorbs rounding error so unit vectors never score outside [-1, 1].
func clamp(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return vals[idxs[a]] > vals[idxs[b]]
	})
	return idxs
}

var _ vectorstore.Index = (*Index)(nil)
