package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"studyrag/internal/domain"
)

// LangchainChunker delegates to langchaingo's recursive character splitter.
// Sizes are measured in runes. Chunks never exceed chunkSize but the overlap
// between neighbours is best-effort: the splitter reuses whole pieces and may
// share fewer runes than configured.
type LangchainChunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewLangchainChunker validates the configuration and builds the splitter.
func NewLangchainChunker(chunkSize, chunkOverlap int) (*LangchainChunker, error) {
	if err := validate(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return &LangchainChunker{splitter: splitter}, nil
}

// Chunk splits the document content, dropping blank pieces.
func (c *LangchainChunker) Chunk(document domain.Document) ([]string, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	pieces, err := c.splitter.SplitText(document.Content)
	if err != nil {
		return nil, fmt.Errorf("chunker: split %s: %w", document.Path, err)
	}
	chunks := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, p)
	}
	return chunks, nil
}

var _ domain.Chunker = (*LangchainChunker)(nil)
