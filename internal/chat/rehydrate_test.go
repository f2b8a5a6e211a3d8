package chat

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

func TestRehydrateRebuildsFromLogs(t *testing.T) {
	s := newService(t)
	clock := freezeClock(s, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	if _, err := s.InitTeam("demo", "", []string{"dev", "qa"}); err != nil {
		t.Fatalf("InitTeam: %v", err)
	}

	assign := envelope("task_assign", "lead", "dev", map[string]any{
		"id":       "msg_rh_1",
		"task_id":  "T-7",
		"trace_id": "tr_rh",
		"payload":  map[string]any{"subject": "build the index"},
	})
	mustSend(t, s, "demo", assign, SendOptions{})

	*clock = clock.Add(time.Second)
	mustSend(t, s, "demo", envelope("handoff", "lead", "qa", map[string]any{"id": "msg_rh_2"}), SendOptions{})

	*clock = clock.Add(time.Second)
	ackStamp := protocol.FormatTime(*clock)
	if res, err := s.Ack("demo", "dev", "msg_rh_1"); err != nil || res.Status != StatusAcked {
		t.Fatalf("Ack = %+v, %v", res, err)
	}

	*clock = clock.Add(time.Second)
	updateStamp := protocol.FormatTime(*clock)
	update := envelope("task_update", "qa", "dev", map[string]any{
		"id":      "msg_rh_3",
		"task_id": "T-7",
		"payload": map[string]any{"status": "review", "blocked": "yes", "note": "flaky check"},
	})
	mustSend(t, s, "demo", update, SendOptions{})
	if _, err := s.ReadInbox("demo", "qa", false, 0, ""); err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}

	st, err := s.Store("demo")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	// Wipe everything derived; only the logs survive the crash.
	for _, dir := range []string{"state", "tasks"} {
		if err := os.RemoveAll(filepath.Join(st.Dir(), dir)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := s.Rehydrate("demo")
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if res.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", res.MessageCount)
	}
	if res.EventCount != 5 {
		t.Errorf("EventCount = %d, want 5", res.EventCount)
	}
	if res.AckCount != 1 {
		t.Errorf("AckCount = %d, want 1", res.AckCount)
	}
	if res.TaskCount != 1 {
		t.Errorf("TaskCount = %d, want 1", res.TaskCount)
	}

	m, err := st.GetMessage("msg_rh_1")
	if err != nil || m == nil {
		t.Fatalf("GetMessage after rehydrate = %v, %v", m, err)
	}
	if m.To() != "dev" {
		t.Errorf("recipient = %q, want dev", m.To())
	}
	index, err := st.MessageIndex()
	if err != nil {
		t.Fatalf("MessageIndex: %v", err)
	}
	entry, ok := index["msg_rh_1"]
	if !ok || entry.Inbox != "dev.jsonl" || entry.Offset == nil {
		t.Fatalf("index entry = %+v", entry)
	}
	rec, err := fsio.ReadLineAt(filepath.Join(st.Dir(), "inboxes", "dev.jsonl"), *entry.Offset)
	if err != nil {
		t.Fatalf("ReadLineAt: %v", err)
	}
	if rec["id"] != "msg_rh_1" {
		t.Errorf("offset resolves to %v", rec["id"])
	}

	acks, err := st.AckedSet()
	if err != nil {
		t.Fatalf("AckedSet: %v", err)
	}
	ack, ok := acks["msg_rh_1"]
	if !ok {
		t.Fatal("ack for msg_rh_1 not rebuilt")
	}
	if ack.Agent != "dev" || ack.AckedAt != ackStamp {
		t.Errorf("ack = %+v, want agent dev acked at %s", ack, ackStamp)
	}

	task, err := s.Task("demo", "T-7")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task == nil {
		t.Fatal("task T-7 not rebuilt")
	}
	if task.Status() != "review" || !task.Blocked() {
		t.Errorf("task = %+v, want status review blocked", task)
	}
	if task.Owner() != "dev" || task["assigned_by"] != "lead" || task["last_update_from"] != "qa" {
		t.Errorf("task attribution = %+v", task)
	}
	if task["subject"] != "build the index" || task["note"] != "flaky check" {
		t.Errorf("task fields = %+v", task)
	}
	if task.UpdatedAt() != updateStamp {
		t.Errorf("updated_at = %q, want %q", task.UpdatedAt(), updateStamp)
	}

	done := eventsOfKind(allEvents(t, s, "demo"), protocol.KindRehydrateCompleted)
	if len(done) != 1 {
		t.Fatalf("rehydrate_completed events = %d, want 1", len(done))
	}
	payload := done[0].Payload()
	if payload["message_count"] != float64(3) || payload["ack_count"] != float64(1) {
		t.Errorf("completion payload = %v", payload)
	}
}

func TestRehydrateTwiceIsAFixpoint(t *testing.T) {
	s := newService(t)
	clock := freezeClock(s, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))

	assign := envelope("task_assign", "lead", "dev", map[string]any{
		"id":      "msg_fx_1",
		"task_id": "T-9",
		"payload": map[string]any{"subject": "stabilize rebuilds"},
	})
	mustSend(t, s, "demo", assign, SendOptions{})
	*clock = clock.Add(time.Second)
	mustSend(t, s, "demo", envelope("handoff", "lead", "qa", map[string]any{"id": "msg_fx_2"}), SendOptions{})
	*clock = clock.Add(time.Second)
	if res, err := s.Ack("demo", "dev", "msg_fx_1"); err != nil || res.Status != StatusAcked {
		t.Fatalf("Ack = %+v, %v", res, err)
	}

	st, err := s.Store("demo")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	first, err := s.Rehydrate("demo")
	if err != nil {
		t.Fatalf("first Rehydrate: %v", err)
	}
	messages1, err := st.MessageIndex()
	if err != nil {
		t.Fatalf("MessageIndex: %v", err)
	}
	events1, err := st.EventIndex()
	if err != nil {
		t.Fatalf("EventIndex: %v", err)
	}
	acks1, err := st.AckedSet()
	if err != nil {
		t.Fatalf("AckedSet: %v", err)
	}
	tasks1, err := st.ListTaskSnapshots()
	if err != nil {
		t.Fatalf("ListTaskSnapshots: %v", err)
	}

	*clock = clock.Add(time.Second)
	second, err := s.Rehydrate("demo")
	if err != nil {
		t.Fatalf("second Rehydrate: %v", err)
	}
	messages2, err := st.MessageIndex()
	if err != nil {
		t.Fatalf("MessageIndex: %v", err)
	}
	events2, err := st.EventIndex()
	if err != nil {
		t.Fatalf("EventIndex: %v", err)
	}
	acks2, err := st.AckedSet()
	if err != nil {
		t.Fatalf("AckedSet: %v", err)
	}
	tasks2, err := st.ListTaskSnapshots()
	if err != nil {
		t.Fatalf("ListTaskSnapshots: %v", err)
	}

	if second.MessageCount != first.MessageCount || second.AckCount != first.AckCount || second.TaskCount != first.TaskCount {
		t.Errorf("second = %+v, want counts of first %+v", second, first)
	}
	// The second pass additionally scans the completion event the first one
	// appended; that is the only growth either pass may cause.
	if second.EventCount != first.EventCount+1 {
		t.Errorf("EventCount = %d, want %d", second.EventCount, first.EventCount+1)
	}

	if !reflect.DeepEqual(messages1, messages2) {
		t.Errorf("message index changed:\nfirst  %+v\nsecond %+v", messages1, messages2)
	}
	if !reflect.DeepEqual(acks1, acks2) {
		t.Errorf("ack index changed:\nfirst  %+v\nsecond %+v", acks1, acks2)
	}
	if !reflect.DeepEqual(tasks1, tasks2) {
		t.Errorf("task snapshots changed:\nfirst  %+v\nsecond %+v", tasks1, tasks2)
	}

	if len(events2) != len(events1)+1 {
		t.Fatalf("event index sizes = %d then %d, want one new entry", len(events1), len(events2))
	}
	for id, entry1 := range events1 {
		entry2, ok := events2[id]
		if !ok {
			t.Errorf("event %s dropped by the second pass", id)
			continue
		}
		if !reflect.DeepEqual(entry1, entry2) {
			t.Errorf("event %s entry changed: %+v then %+v", id, entry1, entry2)
		}
	}
	done := eventsOfKind(allEvents(t, s, "demo"), protocol.KindRehydrateCompleted)
	if len(done) != 2 {
		t.Errorf("rehydrate_completed events = %d, want one per pass", len(done))
	}
}

func TestRehydrateIndexesOrphanInboxLines(t *testing.T) {
	s := newService(t)
	mustSend(t, s, "demo", envelope("handoff", "lead", "dev", map[string]any{"id": "msg_or_1"}), SendOptions{})

	st, err := s.Store("demo")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	// A line appended by a writer that died before indexing.
	orphan := envelope("handoff", "lead", "dev", map[string]any{
		"id":         "msg_or_2",
		"created_at": "2024-05-01T11:00:00Z",
	})
	if _, err := fsio.AppendLine(filepath.Join(st.Dir(), "inboxes", "dev.jsonl"), orphan); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	if m, err := st.GetMessage("msg_or_2"); err != nil || m != nil {
		t.Fatalf("orphan visible before rehydrate: %v, %v", m, err)
	}

	res, err := s.Rehydrate("demo")
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if res.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", res.MessageCount)
	}
	m, err := st.GetMessage("msg_or_2")
	if err != nil || m == nil {
		t.Fatalf("orphan not recovered: %v, %v", m, err)
	}
	if m.CreatedAt() != "2024-05-01T11:00:00Z" {
		t.Errorf("recovered created_at = %q", m.CreatedAt())
	}
}

func TestRehydrateSkipsMalformedAndBadTaskIDs(t *testing.T) {
	s := newService(t)
	mustSend(t, s, "demo", envelope("handoff", "lead", "dev", map[string]any{"id": "msg_sk_1"}), SendOptions{})

	st, err := s.Store("demo")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	inbox := filepath.Join(st.Dir(), "inboxes", "dev.jsonl")
	f, err := os.OpenFile(inbox, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	// Valid line whose task id could escape the tasks directory.
	bad := envelope("task_assign", "lead", "dev", map[string]any{
		"id":         "msg_sk_2",
		"task_id":    "../escape",
		"created_at": "2024-05-01T12:00:00Z",
	})
	if _, err := fsio.AppendLine(inbox, bad); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}

	res, err := s.Rehydrate("demo")
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if res.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", res.MessageCount)
	}
	if res.TaskCount != 0 {
		t.Errorf("TaskCount = %d, want 0", res.TaskCount)
	}
	tasks, err := s.Tasks("demo")
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks = %v, want none", tasks)
	}
	if len(st.Malformed()) == 0 {
		t.Error("malformed line was not recorded")
	}
}
