package fsio

import (
	"fmt"
	"os"
	"sync"
)

// WarnEnvVar enables a one-time stderr warning per damaged file when set
// to "1".
const WarnEnvVar = "TEAM_CHAT_WARN_MALFORMED"

// MalformedEntry summarizes the damaged lines seen in one file.
type MalformedEntry struct {
	Count          int    `json:"count"`
	LastLineNumber int    `json:"last_line_number"`
	LastReason     string `json:"last_reason"`
	Path           string `json:"path"`
}

// MalformedLog aggregates malformed-JSONL observations across readers. The
// zero value is not usable; a nil *MalformedLog discards observations.
type MalformedLog struct {
	mu      sync.Mutex
	entries map[string]*MalformedEntry
	warned  map[string]bool
}

// NewMalformedLog returns an empty aggregate.
func NewMalformedLog() *MalformedLog {
	return &MalformedLog{
		entries: make(map[string]*MalformedEntry),
		warned:  make(map[string]bool),
	}
}

// Record notes one damaged line. lineNo is -1 when the reader cannot cheaply
// know it (reverse scans).
func (m *MalformedLog) Record(path string, lineNo int, reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	e, ok := m.entries[path]
	if !ok {
		e = &MalformedEntry{Path: path}
		m.entries[path] = e
	}
	e.Count++
	e.LastLineNumber = lineNo
	e.LastReason = reason
	warn := !m.warned[path] && os.Getenv(WarnEnvVar) == "1"
	if warn {
		m.warned[path] = true
	}
	m.mu.Unlock()

	if warn {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed JSONL in %s (line %d): %s\n", path, lineNo, reason)
	}
}

// Snapshot returns a copy of the aggregate keyed by path.
func (m *MalformedLog) Snapshot() map[string]MalformedEntry {
	out := map[string]MalformedEntry{}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, e := range m.entries {
		out[path] = *e
	}
	return out
}

// TotalCount returns the number of damaged lines seen across all files.
func (m *MalformedLog) TotalCount() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.entries {
		total += e.Count
	}
	return total
}
