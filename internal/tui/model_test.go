package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/history"
	"studyrag/internal/summarizer"
)

type fakePort struct {
	chunks   []string
	results  []domain.SearchResult
	err      error
	ingested []string
	lastK    int
}

func (f *fakePort) Ingest(_ context.Context, path string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.ingested = append(f.ingested, path)
	f.chunks = append(f.chunks, "Comets have tails. Comets orbit the sun.")
	return 1, nil
}

func (f *fakePort) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	f.lastK = k
	return f.results, f.err
}

func (f *fakePort) Chunks() []string { return f.chunks }

func submit(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func newModel(port *fakePort, hist *history.Log) Model {
	m := New(context.Background(), port, hist, Options{
		TopK:         2,
		Summarizer:   summarizer.NewFrequencySummarizer(),
		MaxSentences: 1,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestModel_Search(t *testing.T) {
	t.Run("ShouldShowResultsAndRecordHistory", func(t *testing.T) {
		port := &fakePort{results: []domain.SearchResult{
			{Ordinal: 0, Text: "Cats are mammals. They purr.", Score: 0.5},
			{Ordinal: 1, Text: "Dogs are mammals.", Score: 0.4},
		}}
		hist := history.New()
		m := newModel(port, hist)

		m, _ = submit(t, m, "mammal pets")
		assert.Equal(t, 2, port.lastK)
		assert.Len(t, m.results, 2)
		assert.Contains(t, m.status, "2 results")
		assert.Empty(t, m.input.Value())
		assert.Contains(t, m.View(), "Cats are mammals.")

		all := hist.All()
		require.Len(t, all, 1)
		assert.Equal(t, "mammal pets", all[0].Query)
		assert.Equal(t, []string{"Cats are mammals. They purr.", "Dogs are mammals."}, all[0].Results)

		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
		assert.Equal(t, 1, m.cursor)
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		assert.Equal(t, 0, next.(Model).cursor)
	})

	t.Run("ShouldReportNoDocuments", func(t *testing.T) {
		hist := history.New()
		m := newModel(&fakePort{}, hist)
		m, _ = submit(t, m, "anything")
		assert.Equal(t, NoDocumentsMessage, m.status)
		assert.Contains(t, m.renderCurrentResult(), NoDocumentsMessage)
		require.Len(t, hist.All(), 1)
		assert.Equal(t, NoDocumentsMessage, hist.All()[0].Response)
	})

	t.Run("ShouldShowSearchErrors", func(t *testing.T) {
		m := newModel(&fakePort{err: errors.New("boom")}, nil)
		m, _ = submit(t, m, "anything")
		assert.Equal(t, "Error: boom", m.status)
		assert.Equal(t, "Search failed: boom", m.renderCurrentResult())
	})

	t.Run("ShouldReplacePreviousResultsWithError", func(t *testing.T) {
		port := &fakePort{results: []domain.SearchResult{{Ordinal: 0, Text: "Cats are mammals.", Score: 0.5}}}
		m := newModel(port, nil)
		m, _ = submit(t, m, "cats")
		require.Len(t, m.results, 1)

		port.err = errors.New("embedder offline")
		m, _ = submit(t, m, "dogs")
		view := m.renderCurrentResult()
		assert.Equal(t, "Search failed: embedder offline", view)
		assert.NotContains(t, view, NoDocumentsMessage)
		assert.Empty(t, m.lastQuery)

		port.err = nil
		m, _ = submit(t, m, "cats")
		assert.Contains(t, m.renderCurrentResult(), "Cats are mammals.")
	})
}

func TestModel_Commands(t *testing.T) {
	t.Run("ShouldIngestInBackground", func(t *testing.T) {
		port := &fakePort{}
		m := newModel(port, nil)

		m, cmd := submit(t, m, "/ingest notes/space.txt")
		require.NotNil(t, cmd)
		assert.True(t, m.busy)
		assert.Contains(t, m.status, "Ingesting notes/space.txt")

		m, again := submit(t, m, "/ingest other.txt")
		assert.Nil(t, again)
		assert.Contains(t, m.status, "already running")

		next, _ := m.Update(cmd())
		m = next.(Model)
		assert.False(t, m.busy)
		assert.Equal(t, []string{"notes/space.txt"}, port.ingested)
		assert.Contains(t, m.status, "Ingested 1 chunks")
		assert.NotEmpty(t, m.summary)
		assert.Contains(t, m.summary, "Comets")
	})

	t.Run("ShouldReportIngestErrors", func(t *testing.T) {
		m := newModel(&fakePort{}, nil)
		next, _ := m.Update(ingestedMsg{path: "x.pdf", err: domain.ErrUnreadableDocument})
		assert.Contains(t, next.(Model).status, domain.ErrUnreadableDocument.Error())
	})

	t.Run("ShouldRequireIngestPath", func(t *testing.T) {
		m := newModel(&fakePort{}, nil)
		m, cmd := submit(t, m, "/ingest")
		assert.Nil(t, cmd)
		assert.Equal(t, "Usage: /ingest <path>", m.status)
	})

	t.Run("ShouldListAndClearHistory", func(t *testing.T) {
		hist := history.New()
		hist.Add("what are cats", "Cats are mammals.", nil)
		hist.Add("hot things", "Stars are hot.", nil)
		m := newModel(&fakePort{}, hist)

		m, _ = submit(t, m, "/history cats")
		assert.Equal(t, modeHistory, m.mode)
		require.Len(t, m.found, 1)
		assert.Equal(t, "1 of 2 interactions", m.status)
		assert.True(t, strings.Contains(m.renderHistory(), "Cats are mammals."))

		m, _ = submit(t, m, "/clear")
		assert.Equal(t, 0, hist.Len())
		assert.Equal(t, "No interactions.", m.renderHistory())
	})
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Stars are hot. Cats are mammals.", "cats")
	assert.Contains(t, out, "Stars are hot.")
	assert.Contains(t, out, highlightStyle.Render("Cats are mammals."))

	assert.Equal(t, "Stars are hot. Cats are mammals.", highlightBestSentence("Stars are hot.  Cats are mammals.", ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate(" a\n b ", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 3))
}
