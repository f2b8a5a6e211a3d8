package store

import (
	"path/filepath"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// WriteDeadLetter appends d to the dated dead-letter log.
func (s *Store) WriteDeadLetter(d protocol.DeadLetter) error {
	release, err := s.locks.Acquire(lock.DeadLetter)
	if err != nil {
		return err
	}
	defer release()

	file := dateOf(d.CreatedAt()) + ".jsonl"
	_, err = fsio.AppendLine(filepath.Join(s.deadLetterDir(), file), d)
	return err
}

// ListDeadLetters returns every dead-letter entry in file order, oldest
// first.
func (s *Store) ListDeadLetters() ([]protocol.DeadLetter, error) {
	entries, err := s.deadLetterFiles()
	if err != nil {
		return nil, err
	}
	var out []protocol.DeadLetter
	for _, f := range entries {
		err := fsio.ScanRecords(filepath.Join(s.deadLetterDir(), f), s.mal, func(rec map[string]any) bool {
			out = append(out, protocol.DeadLetter(rec))
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) deadLetterFiles() ([]string, error) {
	return listJSONLFiles(s.deadLetterDir())
}
