package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studyrag/internal/domain"
	"studyrag/internal/history"
)

// NoDocumentsMessage is shown when a query matches nothing in the store.
const NoDocumentsMessage = "No relevant internal documents found."

// Port is the TUI-facing subset of the retrieval engine.
type Port interface {
	Ingest(ctx context.Context, path string) (int, error)
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Chunks() []string
}

// Options tunes the session. Summarizer may be nil, in which case the header
// summary is never refreshed.
type Options struct {
	TopK         int
	Summary      string
	Summarizer   domain.Summarizer
	MaxSentences int
}

type mode int

const (
	modeResults mode = iota
	modeHistory
)

// ingestedMsg reports the end of a background ingestion.
type ingestedMsg struct {
	path   string
	chunks int
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	service   Port
	history   *history.Log
	opts      Options
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	found     []history.Interaction
	mode      mode
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
	lastErr   error
}

// New creates a new TUI model instance.
func New(ctx context.Context, service Port, hist *history.Log, opts Options) Model {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if hist == nil {
		hist = history.New()
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask something, or /ingest <path>, /history [keyword], /clear"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		history:  hist,
		opts:     opts,
		input:    ti,
		viewport: vp,
		summary:  opts.Summary,
		status:   fmt.Sprintf("%d chunks indexed. Type to search.", len(service.Chunks())),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, max(3, msg.Height-reserved)-rh)
		m.refresh()
		return m, nil
	case ingestedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		if msg.chunks == 0 {
			m.status = fmt.Sprintf("%s contained no text; nothing ingested.", msg.path)
			return m, nil
		}
		m.status = fmt.Sprintf("Ingested %d chunks from %s (%d total).", msg.chunks, msg.path, len(m.service.Chunks()))
		m.refreshSummary()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m.run(line)
		case "down":
			if m.mode == modeResults && len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.mode == modeResults && len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) run(line string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/ingest":
		if arg == "" {
			m.status = "Usage: /ingest <path>"
			return m, nil
		}
		if m.busy {
			m.status = "An ingestion is already running."
			return m, nil
		}
		m.busy = true
		m.status = "Ingesting " + arg + "..."
		return m, m.ingest(arg)
	case "/history":
		m.mode = modeHistory
		m.found = m.history.Search(arg)
		m.status = fmt.Sprintf("%d of %d interactions", len(m.found), m.history.Len())
		m.refresh()
		return m, nil
	case "/clear":
		m.history.Clear()
		m.found = nil
		m.status = "History cleared."
		m.refresh()
		return m, nil
	}
	return m.search(line), nil
}

func (m Model) ingest(path string) tea.Cmd {
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		n, err := service.Ingest(ctx, path)
		return ingestedMsg{path: path, chunks: n, err: err}
	}
}

func (m Model) search(q string) Model {
	m.mode = modeResults
	res, err := m.service.Search(m.ctx, q, m.opts.TopK)
	m.cursor = 0
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
		m.lastQuery = ""
		m.lastErr = err
		m.refresh()
		return m
	}
	m.results = res
	m.lastQuery = q
	m.lastErr = nil
	texts := make([]string, len(res))
	for i, r := range res {
		texts[i] = r.Text
	}
	if len(res) == 0 {
		m.status = NoDocumentsMessage
		m.history.Add(q, NoDocumentsMessage, nil)
	} else {
		m.status = fmt.Sprintf("%d results for %q", len(res), q)
		m.history.Add(q, strings.TrimSpace(res[0].Text), texts)
	}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	if m.mode == modeHistory {
		m.viewport.SetContent(m.renderHistory())
	} else {
		m.viewport.SetContent(m.renderCurrentResult())
	}
	m.viewport.GotoTop()
}

func (m *Model) refreshSummary() {
	if m.opts.Summarizer == nil {
		return
	}
	s, err := m.opts.Summarizer.Summarize(strings.Join(m.service.Chunks(), "\n"), m.opts.MaxSentences)
	if err == nil {
		m.summary = s
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("studyrag")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if m.lastErr != nil {
		return "Search failed: " + m.lastErr.Error()
	}
	if m.lastQuery != "" && len(m.results) == 0 {
		return NoDocumentsMessage
	}
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  chunk #%d  score=%.3f", m.cursor+1, len(m.results), r.Ordinal, r.Score)
	body := highlightBestSentence(r.Text, m.lastQuery)
	return title + "\n\n" + body
}

func (m Model) renderHistory() string {
	if len(m.found) == 0 {
		return "No interactions."
	}
	var b strings.Builder
	for i, it := range m.found {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s  %s\n", it.Time.Format("15:04:05"), highlightStyle.Render(it.Query))
		b.WriteString(truncate(it.Response, 240))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// highlightBestSentence renders the sentence sharing the most words with the
// query in the highlight style.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
