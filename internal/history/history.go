// Package history keeps the interactions of a session in memory.
package history

import (
	"strings"
	"sync"
	"time"
)

// Interaction is one query and what was shown for it.
type Interaction struct {
	Time     time.Time
	Query    string
	Response string
	Results  []string
}

// Log is safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	items []Interaction
	now   func() time.Time
}

func New() *Log {
	return &Log{now: time.Now}
}

func (l *Log) Add(query, response string, results []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, Interaction{
		Time:     l.now(),
		Query:    query,
		Response: response,
		Results:  append([]string(nil), results...),
	})
}

// All returns every interaction, oldest first.
func (l *Log) All() []Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Interaction(nil), l.items...)
}

// Search returns the interactions whose query or response contains keyword,
// ignoring case. A blank keyword matches everything.
func (l *Log) Search(keyword string) []Interaction {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Interaction
	for _, it := range l.items {
		if strings.Contains(strings.ToLower(it.Query), kw) || strings.Contains(strings.ToLower(it.Response), kw) {
			out = append(out, it)
		}
	}
	return out
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
