package chat

import (
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// applyTaskSnapshot projects m onto its task's snapshot. No-op for
// envelopes without a task id. The read-modify-write runs under no lock;
// the snapshot is derived state and rehydrate restores it from the logs.
func (s *Service) applyTaskSnapshot(st *store.Store, m protocol.Message) error {
	if m.TaskID() == "" {
		return nil
	}
	existing, err := st.ReadTaskSnapshot(m.TaskID())
	if err != nil {
		return err
	}
	return st.WriteTaskSnapshot(deriveTask(existing, m))
}

// deriveTask folds one envelope into a task snapshot. task_assign resets
// ownership, task_update overlays the progress fields, and every other type
// only touches the timestamps. Last writer wins.
func deriveTask(existing protocol.Task, m protocol.Message) protocol.Task {
	task := protocol.Task{}
	for k, v := range existing {
		task[k] = v
	}
	task["task_id"] = m.TaskID()
	payload := m.Payload()

	switch m.Type() {
	case string(protocol.TypeTaskAssign):
		task["status"] = "assigned"
		task["owner"] = m.To()
		task["assigned_by"] = m.From()
		for _, k := range []string{"subject", "details"} {
			if v, ok := payload[k]; ok {
				task[k] = v
			}
		}
	case string(protocol.TypeTaskUpdate):
		for _, k := range []string{"status", "progress", "eta", "note"} {
			if v, ok := payload[k]; ok {
				task[k] = v
			}
		}
		if v, ok := payload["blocked"]; ok {
			task["blocked"] = protocol.Truthy(v)
		}
		task["last_update_from"] = m.From()
	}

	if task.Owner() == "" {
		task["owner"] = m.To()
	}
	if stringEmpty(task["trace_id"]) && m.TraceID() != "" {
		task["trace_id"] = m.TraceID()
	}
	if task.CreatedAt() == "" {
		task["created_at"] = m.CreatedAt()
	}
	task["updated_at"] = m.CreatedAt()
	return task
}

// Tasks returns the team's task snapshots, oldest update first.
func (s *Service) Tasks(team string) ([]protocol.Task, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	return st.ListTaskSnapshots()
}

// Task returns one task snapshot, or nil when no snapshot exists.
func (s *Service) Task(team, taskID string) (protocol.Task, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	return st.ReadTaskSnapshot(taskID)
}

func stringEmpty(v any) bool {
	str, ok := v.(string)
	return !ok || str == ""
}
