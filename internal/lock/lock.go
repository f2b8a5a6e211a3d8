// Package lock provides named advisory file locks. Each team directory gets
// one lock file per name; holding the flock on that file serializes
// in-process and cross-process writers against the named state. Lock files
// are never read and never removed.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock names used by the team store. Each guards one slice of mutable state.
const (
	Messages       = "messages"
	Events         = "events"
	Acks           = "acks"
	DeadLetter     = "dead-letter"
	NudgeCooldown  = "nudge-cooldown"
	StateRehydrate = "state-rehydrate"
)

// Manager hands out blocking exclusive locks backed by files in a single
// directory.
type Manager struct {
	dir string
}

// NewManager returns a manager for lock files under dir. The directory is
// created on first acquire.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Acquire blocks until the named lock is held, then returns a release
// function. Callers must release on every exit path from the protected
// region:
//
//	release, err := locks.Acquire(lock.Messages)
//	if err != nil { ... }
//	defer release()
//
// Locks are not re-entrant; acquiring a held name from the same goroutine
// deadlocks.
func (m *Manager) Acquire(name string) (func(), error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(m.dir, name+".lock"))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring %s lock: %w", name, err)
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}
