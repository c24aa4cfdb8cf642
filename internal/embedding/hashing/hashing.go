package hashing

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
)

// ModelName identifies the hashing scheme. Bump it whenever tokenization or
// weighting changes so existing stores are rejected instead of mixed.
const ModelName = "hashing-v1"

// DefaultDimension matches the vector size of small sentence-transformer models.
const DefaultDimension = 384

// Embedder is an offline, corpus-independent bag-of-words embedder. Each
// token is hashed into one of dimension buckets with a hash-derived sign,
// weighted by sublinear term frequency, and the result is L2-normalized.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("hashing: dimension must be greater than zero, got %d", dimension)
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`),
		stopwords:    defaultStopwords(),
	}, nil
}

func (e *Embedder) Model() string  { return ModelName }
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns the normalized hashed vector for text. Text without any
// usable token maps to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tf := make(map[string]int)
	for _, tok := range e.tokenize(text) {
		tf[tok]++
	}
	// Sorted so colliding buckets always accumulate in the same order.
	terms := make([]string, 0, len(tf))
	for tok := range tf {
		terms = append(terms, tok)
	}
	sort.Strings(terms)
	for _, tok := range terms {
		idx, sign := e.bucket(tok)
		vec[idx] += sign * (1 + math.Log(float64(tf[tok])))
	}
	return embedding.Normalize(vec), nil
}

// EmbedBatch embeds each text independently; results equal single calls.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("hashing: embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) bucket(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum(nil)
	v := binary.BigEndian.Uint64(sum)
	sign := 1.0
	if v>>63 == 1 {
		sign = -1.0
	}
	return int(v % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, stem(t))
	}
	return out
}

// stem folds the most common English plural forms so "mammals" and
// "mammal" land in the same bucket.
func stem(token string) string {
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "ies"):
		return token[:len(token)-3] + "y"
	case len(token) > 3 && strings.HasSuffix(token, "s") &&
		!strings.HasSuffix(token, "ss") && !strings.HasSuffix(token, "us") && !strings.HasSuffix(token, "is"):
		return token[:len(token)-1]
	default:
		return token
	}
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var _ domain.Embedder = (*Embedder)(nil)
