package store

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// Index base names under state/.
const (
	indexMessages = "message-index"
	indexEvents   = "event-index"
	indexAcks     = "ack-index"
)

// Indexes exist in two layouts: a monolithic state/<name>.json and a sharded
// state/<name>-shards/<hh>.json keyed by the first two hex characters of
// SHA-1(id). Reads consult the shard first and fall back to the monolithic
// file, so a store written by an older layout keeps working; writes always go
// to shards. Callers hold the relevant named lock around read-modify-write.

func shardKey(id string) string {
	sum := sha1.Sum([]byte(id))
	return hex.EncodeToString(sum[:1])
}

func monolithicPath(stateDir, name string) string {
	return filepath.Join(stateDir, name+".json")
}

func shardDir(stateDir, name string) string {
	return filepath.Join(stateDir, name+"-shards")
}

func shardPath(stateDir, name, id string) string {
	return filepath.Join(shardDir(stateDir, name), shardKey(id)+".json")
}

func readIndexFile[T any](path string) (map[string]T, error) {
	var m map[string]T
	if err := fsio.ReadJSON(path, &m); err != nil {
		if os.IsNotExist(err) {
			return map[string]T{}, nil
		}
		return nil, err
	}
	if m == nil {
		m = map[string]T{}
	}
	return m, nil
}

// readIndexEntry looks up one id, shard layout first, monolithic second.
func readIndexEntry[T any](stateDir, name, id string) (T, bool, error) {
	var zero T
	shard, err := readIndexFile[T](shardPath(stateDir, name, id))
	if err != nil {
		return zero, false, err
	}
	if e, ok := shard[id]; ok {
		return e, true, nil
	}
	mono, err := readIndexFile[T](monolithicPath(stateDir, name))
	if err != nil {
		return zero, false, err
	}
	e, ok := mono[id]
	return e, ok, nil
}

// writeIndexEntry upserts one id into its shard file. The caller holds the
// lock that owns this index.
func writeIndexEntry[T any](stateDir, name, id string, entry T) error {
	path := shardPath(stateDir, name, id)
	shard, err := readIndexFile[T](path)
	if err != nil {
		return err
	}
	shard[id] = entry
	return fsio.WriteJSONAtomic(path, shard)
}

// loadIndex merges the monolithic file and every shard into one map; shard
// entries win on id collision.
func loadIndex[T any](stateDir, name string) (map[string]T, error) {
	merged, err := readIndexFile[T](monolithicPath(stateDir, name))
	if err != nil {
		return nil, err
	}
	dir := shardDir(stateDir, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return merged, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		shard, err := readIndexFile[T](filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		for id, entry := range shard {
			merged[id] = entry
		}
	}
	return merged, nil
}

// replaceIndex rewrites the index to exactly entries in the sharded layout,
// removing stale shard files and the monolithic file. The caller holds the
// state-rehydrate lock.
func replaceIndex[T any](stateDir, name string, entries map[string]T) error {
	byShard := map[string]map[string]T{}
	for id, entry := range entries {
		k := shardKey(id)
		if byShard[k] == nil {
			byShard[k] = map[string]T{}
		}
		byShard[k][id] = entry
	}

	dir := shardDir(stateDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for k, shard := range byShard {
		if err := fsio.WriteJSONAtomic(filepath.Join(dir, k+".json"), shard); err != nil {
			return err
		}
	}

	existing, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range existing {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		k := strings.TrimSuffix(name, ".json")
		if _, keep := byShard[k]; !keep {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}

	if err := os.Remove(monolithicPath(stateDir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReplaceStateIndexes swaps in freshly built indexes, used by rehydration.
func (s *Store) ReplaceStateIndexes(messages map[string]MessageIndexEntry, events map[string]EventIndexEntry, acks map[string]AckEntry) error {
	release, err := s.locks.Acquire(lock.StateRehydrate)
	if err != nil {
		return err
	}
	defer release()
	return s.replaceStateIndexesLocked(messages, events, acks)
}

func (s *Store) replaceStateIndexesLocked(messages map[string]MessageIndexEntry, events map[string]EventIndexEntry, acks map[string]AckEntry) error {
	if err := replaceIndex(s.stateDir(), indexMessages, messages); err != nil {
		return err
	}
	if err := replaceIndex(s.stateDir(), indexEvents, events); err != nil {
		return err
	}
	return replaceIndex(s.stateDir(), indexAcks, acks)
}

// ReplaceState swaps every piece of derived state at once: the three
// indexes and the task snapshots, all under a single hold of the
// state-rehydrate lock so two concurrent rehydrates cannot interleave.
func (s *Store) ReplaceState(messages map[string]MessageIndexEntry, events map[string]EventIndexEntry, acks map[string]AckEntry, tasks map[string]protocol.Task) error {
	release, err := s.locks.Acquire(lock.StateRehydrate)
	if err != nil {
		return err
	}
	defer release()

	if err := s.replaceStateIndexesLocked(messages, events, acks); err != nil {
		return err
	}
	return s.replaceTaskSnapshotsLocked(tasks)
}
