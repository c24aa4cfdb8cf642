package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"studyrag/internal/chunkstore"
	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/loader"
	"studyrag/internal/logger"
	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/memory"
)

// Options wires an Engine to its collaborators. Logger and Metrics are
// optional.
type Options struct {
	Loader   domain.Loader
	Chunker  domain.Chunker
	Embedder domain.Embedder
	Store    *chunkstore.Store
	Logger   logger.Logger
	Metrics  *Metrics
}

// snapshot pairs the chunk texts with the index built from them. Ordinal i
// in the index is chunks[i].
type snapshot struct {
	chunks []string
	index  vectorstore.Index
}

func emptySnapshot() *snapshot {
	return &snapshot{index: &memory.Index{}}
}

// Engine ingests documents into a persistent chunk store and answers
// similarity queries against an in-memory index rebuilt from that store.
//
// Ingest and Reset are serialized. Queries never block on them: they read
// whichever snapshot was published last.
type Engine struct {
	loader   domain.Loader
	chunker  domain.Chunker
	embedder domain.Embedder
	store    *chunkstore.Store
	log      logger.Logger
	metrics  *Metrics

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// IngestReport summarizes a multi-file ingestion.
type IngestReport struct {
	Files  []FileReport
	Chunks int
}

type FileReport struct {
	Path   string
	Chunks int
}

// New builds an engine and indexes whatever the store already holds.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Loader == nil || opts.Chunker == nil || opts.Embedder == nil || opts.Store == nil {
		return nil, errors.New("service: loader, chunker, embedder and store are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		loader:   opts.Loader,
		chunker:  opts.Chunker,
		embedder: opts.Embedder,
		store:    opts.Store,
		log:      log,
		metrics:  opts.Metrics,
	}
	e.snap.Store(emptySnapshot())

	if err := e.checkManifest(); err != nil {
		return nil, err
	}
	chunks, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("service: load store: %w", err)
	}
	if len(chunks) == 0 {
		e.metrics.rebuilt(0, 0)
		e.log.Info("chunk store is empty", "path", e.store.Path())
		return e, nil
	}
	snap, err := e.build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := e.writeManifest(); err != nil {
		return nil, err
	}
	e.snap.Store(snap)
	return e, nil
}

// Ingest loads, chunks and persists the document at path, then rebuilds the
// index over the whole store. It returns the number of new chunks.
func (e *Engine) Ingest(ctx context.Context, path string) (int, error) {
	n, err := e.ingest(ctx, path)
	switch {
	case err != nil:
		e.metrics.ingested(outcomeError, 0)
		e.log.Error("ingest failed", "path", path, "err", err)
	case n == 0:
		e.metrics.ingested(outcomeEmpty, 0)
		e.log.Warn("document produced no chunks", "path", path)
	default:
		e.metrics.ingested(outcomeOK, n)
		e.log.Info("document ingested", "path", path, "chunks", n, "total", e.Len())
	}
	return n, err
}

func (e *Engine) ingest(ctx context.Context, path string) (int, error) {
	doc, err := e.loader.Load(path)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", path, err)
	}
	chunks, err := e.chunker.Chunk(doc)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: chunk: %w", path, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkManifest(); err != nil {
		return 0, err
	}
	if err := e.store.Append(chunks); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", path, err)
	}
	all, err := e.store.Load()
	if err != nil {
		return 0, fmt.Errorf("ingest %s: reload store: %w", path, err)
	}
	// The chunks are already persisted; a failed rebuild leaves the previous
	// snapshot live and the next startup indexes them.
	snap, err := e.build(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", path, err)
	}
	if err := e.writeManifest(); err != nil {
		return 0, err
	}
	e.snap.Store(snap)
	return len(chunks), nil
}

// IngestPaths ingests every file matched by patterns, in lexical order per
// pattern. Patterns naming an existing path or without glob syntax are taken
// literally; glob matches with unsupported extensions are skipped. It stops at the first failure and
// reports what was ingested before it.
func (e *Engine) IngestPaths(ctx context.Context, patterns []string) (IngestReport, error) {
	var report IngestReport
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		paths, err := expand(pattern)
		if err != nil {
			return report, err
		}
		for _, p := range paths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			n, err := e.Ingest(ctx, p)
			if err != nil {
				return report, err
			}
			report.Files = append(report.Files, FileReport{Path: p, Chunks: n})
			report.Chunks += n
		}
	}
	return report, nil
}

func expand(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return []string{pattern}, nil
	}
	// notes[1].txt is a file before it is a character class.
	if _, err := os.Stat(pattern); err == nil {
		return []string{pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", pattern, err)
	}
	var out []string
	for _, m := range matches {
		if loader.Supported(m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no supported files match %q", domain.ErrDocumentNotFound, pattern)
	}
	sort.Strings(out)
	return out, nil
}

// Retrieve returns the texts of the k chunks most similar to query.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	results, err := e.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts, nil
}

// Search is Retrieve with ordinals and scores. An empty index, a
// non-positive k or a blank query yield no results.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	e.metrics.queried()
	snap := e.snap.Load()
	if k <= 0 || snap.index.Len() == 0 || strings.TrimSpace(query) == "" {
		return []domain.SearchResult{}, nil
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := embedding.CheckDimension(e.embedder, vec); err != nil {
		return nil, err
	}
	matches, err := snap.index.Search(embedding.Normalize(vec), k)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = domain.SearchResult{Ordinal: m.Ordinal, Text: snap.chunks[m.Ordinal], Score: m.Score}
	}
	e.log.Debug("query served", "k", k, "results", len(results))
	return results, nil
}

// Reset deletes the persisted store and empties the index.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.store.Clear(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	e.snap.Store(emptySnapshot())
	e.metrics.rebuilt(0, 0)
	e.log.Info("chunk store cleared", "path", e.store.Path())
	return nil
}

// Len returns the number of indexed chunks.
func (e *Engine) Len() int {
	return len(e.snap.Load().chunks)
}

// Chunks returns a copy of the indexed chunk texts in ordinal order.
func (e *Engine) Chunks() []string {
	return append([]string(nil), e.snap.Load().chunks...)
}

// build embeds chunks and indexes them. Nothing is published here.
func (e *Engine) build(ctx context.Context, chunks []string) (*snapshot, error) {
	start := time.Now()
	vectors, err := e.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err := embedding.CheckDimension(e.embedder, vectors...); err != nil {
		return nil, err
	}
	index, err := memory.Build(embedding.NormalizeAll(vectors))
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	took := time.Since(start)
	e.metrics.rebuilt(index.Len(), took)
	e.log.Info("index rebuilt", "chunks", index.Len(), "model", e.embedder.Model(), "took", took)
	return &snapshot{chunks: chunks, index: index}, nil
}

func (e *Engine) checkManifest() error {
	m, err := e.store.ReadManifest()
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if m == nil {
		return nil
	}
	if m.Model != e.embedder.Model() || m.Dimension != e.embedder.Dimension() {
		return fmt.Errorf("%w: store was indexed with %s (%d dims), embedder is %s (%d dims)",
			domain.ErrModelMismatch, m.Model, m.Dimension, e.embedder.Model(), e.embedder.Dimension())
	}
	return nil
}

func (e *Engine) writeManifest() error {
	return e.store.WriteManifest(chunkstore.Manifest{Model: e.embedder.Model(), Dimension: e.embedder.Dimension()})
}

var _ domain.RAGService = (*Engine)(nil)
