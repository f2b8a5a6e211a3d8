// Package notify implements the unread-message notifier: a cron-driven
// sweep that finds team members with unread mail and leaves them a nudge.
//
// Nudges are delivered cooperatively. Interrupting an agent mid-work to tell
// it about unread mail is worse than the unread mail, so the notifier never
// pushes text at anyone: it drops a small JSON file into a per-agent queue
// directory, and the agent drains its queue at its next natural pause.
//
// Queue location: <dataRoot>/.runtime/nudge-queue/<agent>/
// Each nudge is one file named by timestamp for FIFO ordering.
package notify

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/ident"
)

// Nudge priorities.
const (
	PriorityNormal = "normal"
	PriorityUrgent = "urgent"
)

const (
	// normalTTL and urgentTTL bound how long an undelivered nudge stays
	// relevant; Drain discards anything older.
	normalTTL = 30 * time.Minute
	urgentTTL = 2 * time.Hour

	// maxQueueDepth caps pending nudges per agent so a looping notifier
	// cannot fill the disk.
	maxQueueDepth = 50

	// staleClaimAge is how old a .claimed file must be before Drain treats
	// it as left behind by a crashed drainer.
	staleClaimAge = 5 * time.Minute
)

// Nudge is one queued notification.
type Nudge struct {
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func queueDir(root, agent string) (string, error) {
	a, err := ident.Validate(agent, "agent")
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".runtime", "nudge-queue", a), nil
}

func claimSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "0000"
	}
	return hex.EncodeToString(b)
}

// Enqueue queues a nudge for agent. Returns an error when the agent's queue
// is already at capacity.
func Enqueue(root, agent string, n Nudge) error {
	dir, err := queueDir(root, agent)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating nudge queue: %w", err)
	}

	pending, _ := Pending(root, agent)
	if pending >= maxQueueDepth {
		return fmt.Errorf("nudge queue for %s is full (%d pending)", agent, pending)
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.ExpiresAt.IsZero() {
		ttl := normalTTL
		if n.Priority == PriorityUrgent {
			ttl = urgentTTL
		}
		n.ExpiresAt = n.Timestamp.Add(ttl)
	}

	// Nanosecond stamp plus a random token: unique even when two sweeps
	// enqueue in the same instant, and lexical order stays FIFO.
	name := fmt.Sprintf("%d-%s.json", n.Timestamp.UnixNano(), claimSuffix())
	return fsio.WriteJSONAtomic(filepath.Join(dir, name), n)
}

// Drain removes and returns the agent's queued nudges in FIFO order,
// dropping expired ones. Concurrent drains never deliver a nudge twice: each
// file is claimed by an atomic rename first, and the racer that loses the
// rename moves on. Claims orphaned by a crashed drainer are renamed back
// into the queue once they age past staleClaimAge.
func Drain(root, agent string) ([]Nudge, error) {
	dir, err := queueDir(root, agent)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading nudge queue: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		idx := strings.Index(entry.Name(), ".claimed")
		if idx < 0 {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= staleClaimAge {
			continue
		}
		claimed := filepath.Join(dir, entry.Name())
		if err := os.Rename(claimed, filepath.Join(dir, entry.Name()[:idx])); err != nil {
			_ = os.Remove(claimed)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var nudges []Nudge
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		claim := path + ".claimed." + claimSuffix()
		if err := os.Rename(path, claim); err != nil {
			continue
		}

		var n Nudge
		if err := fsio.ReadJSON(claim, &n); err != nil {
			_ = os.Remove(claim)
			continue
		}
		if !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt) {
			_ = os.Remove(claim)
			continue
		}
		nudges = append(nudges, n)
		_ = os.Remove(claim)
	}
	return nudges, nil
}

// Pending counts queued nudges without draining them. Expired nudges still
// count; only Drain reads file contents.
func Pending(root, agent string) (int, error) {
	dir, err := queueDir(root, agent)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading nudge queue: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count, nil
}
