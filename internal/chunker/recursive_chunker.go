package chunker

import (
	"fmt"
	"strings"

	"studyrag/internal/domain"
)

// Default sizes, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order when looking for a place to cut.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

// RecursiveChunker splits text into windows of at most chunkSize runes, each
// sharing exactly chunkOverlap runes with the next one. Cuts land on the
// coarsest natural boundary available inside the window and fall back to a
// hard cut at chunkSize.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewRecursiveChunker validates the window configuration.
func NewRecursiveChunker(chunkSize, chunkOverlap int) (*RecursiveChunker, error) {
	if err := validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &RecursiveChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

func validate(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunker: chunk size must be greater than zero, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return fmt.Errorf("chunker: chunk overlap cannot be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return fmt.Errorf("chunker: chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	return nil
}

// Chunk splits the document content. Whitespace-only content yields no chunks.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]string, error) {
	return c.split(document.Content), nil
}

func (c *RecursiveChunker) split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []string
	start := 0
	for {
		end := start + c.chunkSize
		if end >= n {
			chunks = append(chunks, string(runes[start:n]))
			return chunks
		}
		// The cut must leave more than chunkOverlap runes behind, otherwise
		// the next window would not move forward.
		cut := boundary(runes, start+c.chunkOverlap+1, end)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - c.chunkOverlap
	}
}

// boundary returns the rightmost cut position in [lo, hi] that directly
// follows a separator, trying coarser separators first. hi is returned when
// no separator fits.
func boundary(runes []rune, lo, hi int) int {
	for _, sep := range separators {
		for pos := hi; pos >= lo && pos >= len(sep); pos-- {
			if hasSeparatorBefore(runes, pos, sep) {
				return pos
			}
		}
	}
	return hi
}

func hasSeparatorBefore(runes []rune, pos int, sep []rune) bool {
	offset := pos - len(sep)
	for i, r := range sep {
		if runes[offset+i] != r {
			return false
		}
	}
	return true
}

var _ domain.Chunker = (*RecursiveChunker)(nil)
