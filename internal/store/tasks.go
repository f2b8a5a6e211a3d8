package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

func (s *Store) taskPath(taskID string) (string, error) {
	id, err := ident.Validate(taskID, "task_id")
	if err != nil {
		return "", err
	}
	return filepath.Join(s.tasksDir(), id+".json"), nil
}

// WriteTaskSnapshot replaces the snapshot for task atomically. Snapshots are
// derived state; concurrent writers race by design and rehydration restores
// canon from the logs.
func (s *Store) WriteTaskSnapshot(task protocol.Task) error {
	path, err := s.taskPath(task.TaskID())
	if err != nil {
		return err
	}
	return fsio.WriteJSONAtomic(path, task)
}

// ReadTaskSnapshot returns the snapshot for taskID, or nil when absent.
func (s *Store) ReadTaskSnapshot(taskID string) (protocol.Task, error) {
	path, err := s.taskPath(taskID)
	if err != nil {
		return nil, err
	}
	var task protocol.Task
	if err := fsio.ReadJSON(path, &task); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// ListTaskSnapshots returns all snapshots ordered by (updated_at, task_id).
// Unparseable snapshot files are skipped and counted with the malformed
// diagnostics rather than failing the listing.
func (s *Store) ListTaskSnapshots() ([]protocol.Task, error) {
	entries, err := os.ReadDir(s.tasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tasks []protocol.Task
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(s.tasksDir(), name)
		var task protocol.Task
		if err := fsio.ReadJSON(path, &task); err != nil {
			s.mal.Record(path, 0, err.Error())
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].UpdatedAt() != tasks[j].UpdatedAt() {
			return tasks[i].UpdatedAt() < tasks[j].UpdatedAt()
		}
		return tasks[i].TaskID() < tasks[j].TaskID()
	})
	return tasks, nil
}

// ReplaceTaskSnapshots rewrites the task directory to exactly tasks, deleting
// snapshots for ids not present. Used by rehydration under its lock.
func (s *Store) ReplaceTaskSnapshots(tasks map[string]protocol.Task) error {
	release, err := s.locks.Acquire(lock.StateRehydrate)
	if err != nil {
		return err
	}
	defer release()
	return s.replaceTaskSnapshotsLocked(tasks)
}

func (s *Store) replaceTaskSnapshotsLocked(tasks map[string]protocol.Task) error {
	for id, task := range tasks {
		path, err := s.taskPath(id)
		if err != nil {
			return err
		}
		if err := fsio.WriteJSONAtomic(path, task); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(s.tasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, keep := tasks[id]; !keep {
			if err := os.Remove(filepath.Join(s.tasksDir(), name)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}
