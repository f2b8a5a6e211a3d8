package store

import (
	"path/filepath"
	"sort"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// EventIndexEntry locates one event in its dated log file.
type EventIndexEntry struct {
	CreatedAt string `json:"created_at"`
	File      string `json:"file"`
}

// AppendEvent writes e to the dated event log unless the id is already
// indexed. Returns true when the event was written.
func (s *Store) AppendEvent(e protocol.Event) (bool, error) {
	release, err := s.locks.Acquire(lock.Events)
	if err != nil {
		return false, err
	}
	defer release()

	if _, found, err := readIndexEntry[EventIndexEntry](s.stateDir(), indexEvents, e.ID()); err != nil {
		return false, err
	} else if found {
		return false, nil
	}

	file := dateOf(e.CreatedAt()) + ".jsonl"
	if _, err := fsio.AppendLine(filepath.Join(s.eventsDir(), file), e); err != nil {
		return false, err
	}
	entry := EventIndexEntry{CreatedAt: e.CreatedAt(), File: file}
	if err := writeIndexEntry(s.stateDir(), indexEvents, e.ID(), entry); err != nil {
		return false, err
	}
	return true, nil
}

// EventFiles lists the dated event log filenames, oldest first.
func (s *Store) EventFiles() ([]string, error) {
	return listJSONLFiles(s.eventsDir())
}

// IterEvents returns every event, ordered by (created_at, id). Timestamps
// are coarse, so the id is the only stable tiebreak.
func (s *Store) IterEvents() ([]protocol.Event, error) {
	files, err := s.EventFiles()
	if err != nil {
		return nil, err
	}
	var events []protocol.Event
	for _, f := range files {
		err := fsio.ScanRecords(filepath.Join(s.eventsDir(), f), s.mal, func(rec map[string]any) bool {
			events = append(events, protocol.Event(rec))
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(events, func(i, j int) bool {
		ti, tj := protocol.EpochOrZero(events[i].CreatedAt()), protocol.EpochOrZero(events[j].CreatedAt())
		if ti != tj {
			return ti < tj
		}
		return events[i].ID() < events[j].ID()
	})
	return events, nil
}

// IterEventsReverse yields events lazily from the newest file to the oldest,
// newest line first within each file. fn returns false to stop.
func (s *Store) IterEventsReverse(fn func(protocol.Event) bool) error {
	files, err := s.EventFiles()
	if err != nil {
		return err
	}
	stopped := false
	for i := len(files) - 1; i >= 0 && !stopped; i-- {
		err := fsio.ReverseScanRecords(filepath.Join(s.eventsDir(), files[i]), s.mal, func(rec map[string]any) bool {
			if !fn(protocol.Event(rec)) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ScanEventFile walks one dated event log oldest-first. file is a bare
// filename from EventFiles.
func (s *Store) ScanEventFile(file string, fn func(e protocol.Event) bool) error {
	path := filepath.Join(s.eventsDir(), filepath.Base(file))
	return fsio.ScanRecords(path, s.mal, func(rec map[string]any) bool {
		return fn(protocol.Event(rec))
	})
}

// EventIndex returns the full event index, both layouts merged.
func (s *Store) EventIndex() (map[string]EventIndexEntry, error) {
	return loadIndex[EventIndexEntry](s.stateDir(), indexEvents)
}
