package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnqueueDrainFIFO(t *testing.T) {
	root := t.TempDir()
	base := time.Now()
	for i, msg := range []string{"first", "second", "third"} {
		n := Nudge{Sender: "notifier", Message: msg, Timestamp: base.Add(time.Duration(i) * time.Millisecond)}
		if err := Enqueue(root, "dev", n); err != nil {
			t.Fatalf("Enqueue %q: %v", msg, err)
		}
	}

	drained, err := Drain(root, "dev")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(drained) != 3 {
		t.Fatalf("drained %d nudges, want 3", len(drained))
	}
	for i, want := range []string{"first", "second", "third"} {
		if drained[i].Message != want {
			t.Errorf("drained[%d] = %q, want %q", i, drained[i].Message, want)
		}
	}
	if drained[0].Priority != PriorityNormal {
		t.Errorf("default priority = %q", drained[0].Priority)
	}

	again, err := Drain(root, "dev")
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second drain returned %d nudges", len(again))
	}
}

func TestDrainDiscardsExpired(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	stale := Nudge{Message: "stale", Timestamp: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)}
	if err := Enqueue(root, "dev", stale); err != nil {
		t.Fatalf("Enqueue stale: %v", err)
	}
	if err := Enqueue(root, "dev", Nudge{Message: "fresh"}); err != nil {
		t.Fatalf("Enqueue fresh: %v", err)
	}

	drained, err := Drain(root, "dev")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(drained) != 1 || drained[0].Message != "fresh" {
		t.Errorf("drained = %+v, want just the fresh nudge", drained)
	}
}

func TestUrgentNudgesExpireLater(t *testing.T) {
	root := t.TempDir()
	stamp := time.Now()
	if err := Enqueue(root, "dev", Nudge{Message: "u", Priority: PriorityUrgent, Timestamp: stamp}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	drained, err := Drain(root, "dev")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(drained) != 1 {
		t.Fatalf("drained %d, want 1", len(drained))
	}
	if got := drained[0].ExpiresAt; !got.Equal(stamp.Add(urgentTTL)) {
		t.Errorf("urgent expiry = %v, want %v", got, stamp.Add(urgentTTL))
	}
}

func TestEnqueueRejectsFullQueue(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < maxQueueDepth; i++ {
		if err := Enqueue(root, "dev", Nudge{Message: "m"}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	err := Enqueue(root, "dev", Nudge{Message: "overflow"})
	if err == nil {
		t.Fatal("enqueue past capacity succeeded")
	}
	if !strings.Contains(err.Error(), "full") {
		t.Errorf("error = %v", err)
	}
}

func TestEnqueueRejectsBadAgent(t *testing.T) {
	if err := Enqueue(t.TempDir(), "../escape", Nudge{Message: "m"}); err == nil {
		t.Fatal("path-traversal agent accepted")
	}
}

func TestPendingLeavesQueueIntact(t *testing.T) {
	root := t.TempDir()
	if n, err := Pending(root, "dev"); err != nil || n != 0 {
		t.Fatalf("empty queue Pending = %d, %v", n, err)
	}
	Enqueue(root, "dev", Nudge{Message: "a"})
	Enqueue(root, "dev", Nudge{Message: "b"})

	for i := 0; i < 2; i++ {
		n, err := Pending(root, "dev")
		if err != nil {
			t.Fatalf("Pending: %v", err)
		}
		if n != 2 {
			t.Errorf("Pending = %d, want 2", n)
		}
	}
	if drained, _ := Drain(root, "dev"); len(drained) != 2 {
		t.Errorf("drain after Pending returned %d nudges", len(drained))
	}
}

func TestDrainRequeuesStaleClaims(t *testing.T) {
	root := t.TempDir()
	if err := Enqueue(root, "dev", Nudge{Message: "orphaned"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Simulate a drainer that claimed the file and crashed.
	dir := filepath.Join(root, ".runtime", "nudge-queue", "dev")
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("queue dir: %v, %d entries", err, len(entries))
	}
	name := entries[0].Name()
	claimed := filepath.Join(dir, name+".claimed.deadbeef")
	if err := os.Rename(filepath.Join(dir, name), claimed); err != nil {
		t.Fatalf("claiming: %v", err)
	}
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(claimed, old, old); err != nil {
		t.Fatalf("backdating claim: %v", err)
	}

	// The first drain requeues the orphan under its original name; delivery
	// happens on the drain after that.
	drained, err := Drain(root, "dev")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(drained) != 0 {
		t.Fatalf("first drain delivered %d nudges", len(drained))
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Fatalf("orphan not restored: %v", err)
	}

	drained, err = Drain(root, "dev")
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(drained) != 1 || drained[0].Message != "orphaned" {
		t.Errorf("second drain = %+v", drained)
	}
}

func TestQueueSenderDeliversThroughQueue(t *testing.T) {
	root := t.TempDir()
	s := QueueSender{Root: root}
	if err := s.Send("demo", "dev", "you have mail"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if n, _ := Pending(root, "dev"); n != 1 {
		t.Fatalf("Pending = %d, want 1", n)
	}
	drained, err := Drain(root, "dev")
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(drained) != 1 || drained[0].Message != "you have mail" || drained[0].Sender != "notifier" {
		t.Errorf("drained = %+v", drained)
	}
}
