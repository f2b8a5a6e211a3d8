package doctor

import (
	"fmt"
	"path/filepath"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// IndexIntegrityCheck verifies that the message and event indexes agree with
// the logs in both directions: every index entry resolves to a log line (and
// its recorded byte offset, when present, reads back the same id), and every
// log line has an index entry.
type IndexIntegrityCheck struct {
	BaseCheck
}

// NewIndexIntegrityCheck creates a new index integrity check.
func NewIndexIntegrityCheck() *IndexIntegrityCheck {
	return &IndexIntegrityCheck{
		BaseCheck: BaseCheck{
			CheckName:        "index_integrity",
			CheckDescription: "Check message and event indexes against the inbox and event logs",
		},
	}
}

// Run walks both indexes and both log families.
func (c *IndexIntegrityCheck) Run(ctx *CheckContext) *CheckResult {
	st := ctx.Store

	messageIndex, err := st.MessageIndex()
	if err != nil {
		return c.failed(err)
	}
	eventIndex, err := st.EventIndex()
	if err != nil {
		return c.failed(err)
	}

	var missingIndexEntries, missingLogLines, badOffsets int

	// Log -> index: every inbox line must be indexed.
	agents, err := st.Agents()
	if err != nil {
		return c.failed(err)
	}
	inboxIDs := map[string]map[string]bool{}
	for _, agent := range agents {
		ids := map[string]bool{}
		err := st.ScanInbox(agent, func(m protocol.Message, offset int64) bool {
			if id := m.ID(); id != "" {
				ids[id] = true
				if _, ok := messageIndex[id]; !ok {
					missingIndexEntries++
				}
			}
			return true
		})
		if err != nil {
			return c.failed(err)
		}
		inboxIDs[agent+".jsonl"] = ids
	}

	// Index -> log: every entry must name an inbox that holds its id, and a
	// recorded offset must read back that id.
	for id, entry := range messageIndex {
		ids, ok := inboxIDs[filepath.Base(entry.Inbox)]
		if !ok || !ids[id] {
			missingLogLines++
			continue
		}
		if entry.Offset != nil {
			path := filepath.Join(st.Dir(), "inboxes", filepath.Base(entry.Inbox))
			rec, err := fsio.ReadLineAt(path, *entry.Offset)
			if err != nil || protocol.Message(rec).ID() != id {
				badOffsets++
			}
		}
	}

	// Same two directions for events.
	files, err := st.EventFiles()
	if err != nil {
		return c.failed(err)
	}
	eventIDs := map[string]string{}
	for _, file := range files {
		err := st.ScanEventFile(file, func(e protocol.Event) bool {
			if id := e.ID(); id != "" {
				eventIDs[id] = file
				if _, ok := eventIndex[id]; !ok {
					missingIndexEntries++
				}
			}
			return true
		})
		if err != nil {
			return c.failed(err)
		}
	}
	for id, entry := range eventIndex {
		if file, ok := eventIDs[id]; !ok || file != filepath.Base(entry.File) {
			missingLogLines++
		}
	}

	details := map[string]any{
		"bad_offsets":           badOffsets,
		"events_indexed":        len(eventIndex),
		"messages_indexed":      len(messageIndex),
		"missing_index_entries": missingIndexEntries,
		"missing_log_lines":     missingLogLines,
	}
	if n := missingIndexEntries + missingLogLines + badOffsets; n > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusUnhealthy,
			Summary: fmt.Sprintf("%d discrepancies between indexes and logs", n),
			Details: details,
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusHealthy,
		Summary: "indexes agree with the logs",
		Details: details,
	}
}
