package chat

import (
	"strings"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// DefaultStaleMinutes is the staleness horizon when the caller gives none.
const DefaultStaleMinutes = 90

// StatusResult is a team health summary: who is on the team, what they have
// not read, which tasks look stuck, and any damage readers have seen.
type StatusResult struct {
	BlockedTasks   []protocol.Task                `json:"blocked_tasks"`
	MalformedJSONL map[string]fsio.MalformedEntry `json:"malformed_jsonl"`
	Members        []string                       `json:"members"`
	StaleMessages  []store.StaleMessage           `json:"stale_messages"`
	StaleTasks     []protocol.Task                `json:"stale_tasks"`
	TaskCount      int                            `json:"task_count"`
	Team           string                         `json:"team"`
	UnreadCounts   map[string]int                 `json:"unread_counts"`
}

// Status summarizes a team. A task is blocked when its status reads
// "blocked" (case-insensitive) or its blocked flag is truthy; tasks and
// unacked messages older than staleMinutes are reported stale.
func (s *Service) Status(team string, staleMinutes int) (*StatusResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	if staleMinutes <= 0 {
		staleMinutes = DefaultStaleMinutes
	}
	cutoff := s.now().UTC().Add(-time.Duration(staleMinutes) * time.Minute)

	members, err := st.Agents()
	if err != nil {
		return nil, err
	}
	unread, err := st.UnreadCounts()
	if err != nil {
		return nil, err
	}
	tasks, err := st.ListTaskSnapshots()
	if err != nil {
		return nil, err
	}
	staleMessages, err := st.StaleUnreadBefore(cutoff)
	if err != nil {
		return nil, err
	}

	blocked := []protocol.Task{}
	staleTasks := []protocol.Task{}
	for _, task := range tasks {
		if strings.EqualFold(task.Status(), "blocked") || task.Blocked() {
			blocked = append(blocked, task)
		}
		if at, err := protocol.ParseTime(task.UpdatedAt()); err == nil && at.Before(cutoff) {
			staleTasks = append(staleTasks, task)
		}
	}

	if members == nil {
		members = []string{}
	}
	if staleMessages == nil {
		staleMessages = []store.StaleMessage{}
	}
	return &StatusResult{
		BlockedTasks:   blocked,
		MalformedJSONL: st.Malformed(),
		Members:        members,
		StaleMessages:  staleMessages,
		StaleTasks:     staleTasks,
		TaskCount:      len(tasks),
		Team:           team,
		UnreadCounts:   unread,
	}, nil
}
