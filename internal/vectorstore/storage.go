// Package vectorstore defines the read side of a vector index. Indexes are
// built once from an ordered sequence of normalized vectors and never
// mutated; callers rebuild and swap instead.
package vectorstore

import "studyrag/internal/domain"

// Index supports exact top-k inner-product search over stored vectors.
// Results refer to stored vectors by ordinal (their position at build time).
type Index interface {
	Len() int
	Dimension() int
	Search(vector []float64, topK int) ([]domain.Match, error)
}
