package domain

import "context"

// Document kinds, derived from the file extension by the loader.
const (
	KindText = "text"
	KindPDF  = "pdf"
)

// Document represents a single file loaded into the system.
// It is only kept around until it has been chunked.
type Document struct {
	Path    string
	Kind    string
	Content string
}

// Match is a raw index hit: the ordinal of a stored chunk and its score.
type Match struct {
	Ordinal int
	Score   float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Ordinal int
	Text    string
	Score   float64
}

// Loader extracts plain text from a file on disk.
type Loader interface {
	Load(path string) (Document, error)
}

// Chunker splits documents into overlapping passages suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]string, error)
}

// Embedder converts free text into a fixed-dimension numeric vector.
// Results must be deterministic for a given Model().
type Embedder interface {
	Model() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Ingest(ctx context.Context, path string) (int, error)
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}
