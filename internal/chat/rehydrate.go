package chat

import (
	"sort"

	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// RehydrateResult reports how much state a rehydrate rebuilt.
type RehydrateResult struct {
	AckCount     int    `json:"ack_count"`
	EventCount   int    `json:"event_count"`
	MessageCount int    `json:"message_count"`
	TaskCount    int    `json:"task_count"`
	Team         string `json:"team"`
}

// Rehydrate rebuilds all derived state from the logs: the message index
// from inbox lines (with fresh byte offsets), the event index from the
// dated event files, the ack index from message_acked events, and the task
// snapshots from a chronological replay of every task-bearing envelope.
// The swap happens under the state-rehydrate lock; inbox lines whose index
// entry was lost to a crash get re-indexed here.
func (s *Service) Rehydrate(team string) (*RehydrateResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}

	agents, err := st.Agents()
	if err != nil {
		return nil, err
	}
	messages := map[string]store.MessageIndexEntry{}
	var replay []protocol.Message
	for _, agent := range agents {
		inbox := agent + ".jsonl"
		err := st.ScanInbox(agent, func(m protocol.Message, offset int64) bool {
			if m.ID() == "" {
				return true
			}
			off := offset
			messages[m.ID()] = store.MessageIndexEntry{
				CreatedAt: m.CreatedAt(),
				Inbox:     inbox,
				Offset:    &off,
				To:        m.To(),
			}
			replay = append(replay, m)
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	events := map[string]store.EventIndexEntry{}
	acks := map[string]store.AckEntry{}
	files, err := st.EventFiles()
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		err := st.ScanEventFile(file, func(e protocol.Event) bool {
			if e.ID() != "" {
				events[e.ID()] = store.EventIndexEntry{CreatedAt: e.CreatedAt(), File: file}
			}
			if e.Kind() == string(protocol.KindMessageAcked) {
				payload := e.Payload()
				messageID, _ := payload["message_id"].(string)
				agent, _ := payload["agent"].(string)
				// First ack wins, matching record_ack's insert-if-absent.
				if messageID != "" {
					if _, ok := acks[messageID]; !ok {
						acks[messageID] = store.AckEntry{
							AckedAt:   e.CreatedAt(),
							Agent:     agent,
							MessageID: messageID,
						}
					}
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(replay, func(i, j int) bool {
		ti, tj := protocol.EpochOrZero(replay[i].CreatedAt()), protocol.EpochOrZero(replay[j].CreatedAt())
		if ti != tj {
			return ti < tj
		}
		return replay[i].ID() < replay[j].ID()
	})
	tasks := map[string]protocol.Task{}
	for _, m := range replay {
		taskID := m.TaskID()
		if taskID == "" {
			continue
		}
		if _, err := ident.Validate(taskID, "task_id"); err != nil {
			// A log line with an unusable task id is data, not an error.
			continue
		}
		tasks[taskID] = deriveTask(tasks[taskID], m)
	}

	if err := st.ReplaceState(messages, events, acks, tasks); err != nil {
		return nil, err
	}

	res := &RehydrateResult{
		AckCount:     len(acks),
		EventCount:   len(events),
		MessageCount: len(messages),
		TaskCount:    len(tasks),
		Team:         team,
	}
	ev := s.newEvent(protocol.KindRehydrateCompleted, team, map[string]any{
		"ack_count":     res.AckCount,
		"event_count":   res.EventCount,
		"message_count": res.MessageCount,
		"task_count":    res.TaskCount,
	}, "", "")
	if _, err := st.AppendEvent(ev); err != nil {
		return nil, err
	}

	s.logger.Info().Str("team", team).
		Int("messages", res.MessageCount).
		Int("events", res.EventCount).
		Int("acks", res.AckCount).
		Int("tasks", res.TaskCount).
		Msg("state rehydrated")
	return res, nil
}
