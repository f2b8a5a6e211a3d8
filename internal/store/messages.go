package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// MessageIndexEntry locates one message: the inbox file it lives in and,
// for entries written by current code, the byte offset its line begins at.
// Entries migrated from older layouts may lack the offset.
type MessageIndexEntry struct {
	CreatedAt string `json:"created_at"`
	Inbox     string `json:"inbox"`
	Offset    *int64 `json:"offset,omitempty"`
	To        string `json:"to"`
}

// UpsertMessage appends m to its recipient's inbox unless the id is already
// indexed. Returns true on first insert, false on duplicate. Message ids are
// unique across all inboxes of the team.
func (s *Store) UpsertMessage(m protocol.Message) (bool, error) {
	path, err := s.inboxPath(m.To())
	if err != nil {
		return false, err
	}

	release, err := s.locks.Acquire(lock.Messages)
	if err != nil {
		return false, err
	}
	defer release()

	if _, found, err := readIndexEntry[MessageIndexEntry](s.stateDir(), indexMessages, m.ID()); err != nil {
		return false, err
	} else if found {
		return false, nil
	}

	offset, err := fsio.AppendLine(path, m)
	if err != nil {
		return false, err
	}
	entry := MessageIndexEntry{
		CreatedAt: m.CreatedAt(),
		Inbox:     filepath.Base(path),
		Offset:    &offset,
		To:        m.To(),
	}
	if err := writeIndexEntry(s.stateDir(), indexMessages, m.ID(), entry); err != nil {
		return false, err
	}
	return true, nil
}

// GetMessage returns the envelope for id, or nil when the id is not indexed.
// The indexed offset is the fast path; if it reads a different id (stale or
// absent offset), the inbox is scanned linearly.
func (s *Store) GetMessage(id string) (protocol.Message, error) {
	entry, found, err := readIndexEntry[MessageIndexEntry](s.stateDir(), indexMessages, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	path := filepath.Join(s.inboxDir(), filepath.Base(entry.Inbox))

	if entry.Offset != nil {
		if rec, err := fsio.ReadLineAt(path, *entry.Offset); err == nil {
			if m := protocol.Message(rec); m.ID() == id {
				return m, nil
			}
		}
	}

	var out protocol.Message
	err = fsio.ScanRecords(path, s.mal, func(rec map[string]any) bool {
		if m := protocol.Message(rec); m.ID() == id {
			out = m
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessagesWindow pages through an agent's inbox newest-first. The caller
// sees records strictly older than the record whose id equals cursor; an
// unknown cursor yields an empty page. limit <= 0 means no limit. The page
// itself comes back in chronological order, and nextCursor is the id of the
// oldest returned record iff older records remain.
func (s *Store) ListMessagesWindow(agent string, unreadOnly bool, limit int, cursor string) ([]protocol.Message, *string, error) {
	path, err := s.inboxPath(agent)
	if err != nil {
		return nil, nil, err
	}

	var acked map[string]AckEntry
	if unreadOnly {
		if acked, err = s.AckedSet(); err != nil {
			return nil, nil, err
		}
	}

	var collected []protocol.Message
	seenCursor := cursor == ""
	err = fsio.ReverseScanRecords(path, s.mal, func(rec map[string]any) bool {
		m := protocol.Message(rec)
		if !seenCursor {
			if m.ID() == cursor {
				seenCursor = true
			}
			return true
		}
		if unreadOnly {
			if _, ok := acked[m.ID()]; ok {
				return true
			}
		}
		collected = append(collected, m)
		return limit <= 0 || len(collected) < limit+1
	})
	if err != nil {
		return nil, nil, err
	}
	if cursor != "" && !seenCursor {
		return []protocol.Message{}, nil, nil
	}

	page := collected
	var nextCursor *string
	if limit > 0 && len(collected) > limit {
		page = collected[:limit]
		id := page[len(page)-1].ID()
		nextCursor = &id
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	if page == nil {
		page = []protocol.Message{}
	}
	return page, nextCursor, nil
}

// TouchInbox creates an empty inbox file for agent if none exists, so the
// agent shows up as a team member before any message lands.
func (s *Store) TouchInbox(agent string) error {
	path, err := s.inboxPath(agent)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// StaleMessage pairs an unacknowledged message with the agent holding it.
type StaleMessage struct {
	Agent   string           `json:"agent"`
	Message protocol.Message `json:"message"`
}

// StaleUnreadBefore returns every unacknowledged message created before
// cutoff, across all inboxes, ordered by agent then file order.
func (s *Store) StaleUnreadBefore(cutoff time.Time) ([]StaleMessage, error) {
	acked, err := s.AckedSet()
	if err != nil {
		return nil, err
	}
	agents, err := s.Agents()
	if err != nil {
		return nil, err
	}

	var stale []StaleMessage
	for _, agent := range agents {
		path := filepath.Join(s.inboxDir(), agent+".jsonl")
		err := fsio.ScanRecords(path, s.mal, func(rec map[string]any) bool {
			m := protocol.Message(rec)
			if m.ID() == "" {
				return true
			}
			if _, ok := acked[m.ID()]; ok {
				return true
			}
			t, err := protocol.ParseTime(m.CreatedAt())
			if err != nil {
				return true
			}
			if t.Before(cutoff) {
				stale = append(stale, StaleMessage{Agent: agent, Message: m})
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return stale, nil
}

// UnreadCounts returns the number of unacknowledged messages per agent.
func (s *Store) UnreadCounts() (map[string]int, error) {
	acked, err := s.AckedSet()
	if err != nil {
		return nil, err
	}
	agents, err := s.Agents()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(agents))
	for _, agent := range agents {
		path := filepath.Join(s.inboxDir(), agent+".jsonl")
		n := 0
		err := fsio.ScanRecords(path, s.mal, func(rec map[string]any) bool {
			m := protocol.Message(rec)
			if m.ID() != "" {
				if _, ok := acked[m.ID()]; !ok {
					n++
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		counts[agent] = n
	}
	return counts, nil
}

// ScanInbox walks an agent's inbox oldest-first, reporting each line's byte
// offset alongside the parsed envelope.
func (s *Store) ScanInbox(agent string, fn func(m protocol.Message, offset int64) bool) error {
	path, err := s.inboxPath(agent)
	if err != nil {
		return err
	}
	return fsio.ScanRecordsAt(path, s.mal, func(rec map[string]any, offset int64) bool {
		return fn(protocol.Message(rec), offset)
	})
}

// MessageIndex returns the full message index, both layouts merged.
func (s *Store) MessageIndex() (map[string]MessageIndexEntry, error) {
	return loadIndex[MessageIndexEntry](s.stateDir(), indexMessages)
}
