package store

import (
	"os"
	"path/filepath"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
)

func (s *Store) cooldownPath() string {
	return filepath.Join(s.stateDir(), "nudge-index.json")
}

// CheckAndRecordCooldown consults the cooldown ledger for key. If the last
// emission is within seconds, the remaining window is returned and the
// ledger is left untouched; otherwise the ledger records now and 0 is
// returned. seconds <= 0 disables the check.
func (s *Store) CheckAndRecordCooldown(key string, seconds int) (int, error) {
	if seconds <= 0 {
		return 0, nil
	}

	release, err := s.locks.Acquire(lock.NudgeCooldown)
	if err != nil {
		return 0, err
	}
	defer release()

	ledger := map[string]int64{}
	if err := fsio.ReadJSON(s.cooldownPath(), &ledger); err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	now := s.now().Unix()
	if last, ok := ledger[key]; ok {
		elapsed := now - last
		if elapsed < int64(seconds) {
			return seconds - int(elapsed), nil
		}
	}
	ledger[key] = now
	if err := fsio.WriteJSONAtomic(s.cooldownPath(), ledger); err != nil {
		return 0, err
	}
	return 0, nil
}
