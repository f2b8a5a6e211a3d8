package chat

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

func TestSendAssignReadAckFlow(t *testing.T) {
	s := newService(t)
	m := envelope("task_assign", "lead", "dev", map[string]any{
		"id":       "msg_flow_1",
		"task_id":  "T-42",
		"trace_id": "tr_flow",
		"payload":  map[string]any{"subject": "ship it", "details": "by friday"},
	})

	res := mustSend(t, s, "demo", m, SendOptions{})
	if res.Status != StatusSent {
		t.Fatalf("status = %q, want sent", res.Status)
	}
	if res.Message.ID() != "msg_flow_1" || res.Message.CreatedAt() == "" {
		t.Errorf("message not normalized: %v", res.Message)
	}
	if res.Event.Kind() != string(protocol.KindMessageSent) {
		t.Errorf("event kind = %q", res.Event.Kind())
	}

	read, err := s.ReadInbox("demo", "dev", true, 0, "")
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if read.Count != 1 || read.Messages[0].ID() != "msg_flow_1" {
		t.Fatalf("unread = %+v", read)
	}

	ack, err := s.Ack("demo", "dev", "msg_flow_1")
	if err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if ack.Status != StatusAcked {
		t.Fatalf("ack status = %q", ack.Status)
	}

	read, err = s.ReadInbox("demo", "dev", true, 0, "")
	if err != nil {
		t.Fatalf("ReadInbox after ack: %v", err)
	}
	if read.Count != 0 {
		t.Errorf("unread after ack = %d", read.Count)
	}

	task, err := s.Task("demo", "T-42")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task == nil {
		t.Fatal("no task snapshot written")
	}
	if task.Status() != "assigned" || task.Owner() != "dev" {
		t.Errorf("task = %v", task)
	}
	if task["assigned_by"] != "lead" || task["subject"] != "ship it" {
		t.Errorf("assign fields missing: %v", task)
	}
	if task.UpdatedAt() != res.Message.CreatedAt() {
		t.Errorf("updated_at = %q, want message created_at %q", task.UpdatedAt(), res.Message.CreatedAt())
	}

	events := allEvents(t, s, "demo")
	for _, kind := range []protocol.EventKind{protocol.KindMessageSent, protocol.KindInboxRead, protocol.KindMessageAcked} {
		if len(eventsOfKind(events, kind)) == 0 {
			t.Errorf("no %s event recorded", kind)
		}
	}
}

func TestSendDuplicateID(t *testing.T) {
	s := newService(t)
	first := envelope("idle_notification", "dev", "lead", map[string]any{"id": "msg_duplicate_1"})
	second := envelope("idle_notification", "dev", "lead", map[string]any{"id": "msg_duplicate_1"})

	if res := mustSend(t, s, "demo", first, SendOptions{}); res.Status != StatusSent {
		t.Fatalf("first status = %q", res.Status)
	}
	res := mustSend(t, s, "demo", second, SendOptions{})
	if res.Status != StatusDuplicate {
		t.Fatalf("second status = %q, want duplicate", res.Status)
	}

	st, _ := s.Store("demo")
	data, err := os.ReadFile(filepath.Join(st.Dir(), "inboxes", "lead.jsonl"))
	if err != nil {
		t.Fatalf("reading inbox: %v", err)
	}
	if n := strings.Count(string(data), "msg_duplicate_1"); n != 1 {
		t.Errorf("inbox lines for id = %d, want 1", n)
	}

	events := allEvents(t, s, "demo")
	if n := len(eventsOfKind(events, protocol.KindMessageSent)); n != 1 {
		t.Errorf("message_sent events = %d, want 1", n)
	}
	if n := len(eventsOfKind(events, protocol.KindMessageDuplicate)); n != 1 {
		t.Errorf("message_duplicate events = %d, want 1", n)
	}
}

func TestSendRejectsTraversalRecipient(t *testing.T) {
	s := newService(t)
	m := envelope("handoff", "lead", "../escape", nil)

	_, err := s.Send("demo", m, SendOptions{})
	if err == nil {
		t.Fatal("traversal recipient accepted")
	}
	var identErr *ident.Error
	if !errors.As(err, &identErr) || identErr.Field != "recipient" {
		t.Errorf("err = %v, want identifier error on recipient", err)
	}

	st, _ := s.Store("demo")
	inboxes, _ := filepath.Glob(filepath.Join(st.Dir(), "inboxes", "*"))
	eventFiles, _ := filepath.Glob(filepath.Join(st.Dir(), "events", "*"))
	if len(inboxes) != 0 || len(eventFiles) != 0 {
		t.Errorf("rejected send left files: inboxes=%v events=%v", inboxes, eventFiles)
	}
}

func TestSendCooldownSuppression(t *testing.T) {
	s := newService(t)
	opts := SendOptions{CooldownSeconds: 120}

	first := envelope("idle_notification", "dev", "lead", nil)
	if res := mustSend(t, s, "demo", first, opts); res.Status != StatusSent {
		t.Fatalf("first status = %q", res.Status)
	}

	second := envelope("idle_notification", "dev", "lead", nil)
	res := mustSend(t, s, "demo", second, opts)
	if res.Status != StatusSuppressed || res.Reason != "cooldown" {
		t.Fatalf("second = %q/%q, want suppressed/cooldown", res.Status, res.Reason)
	}
	if res.CooldownRemainingSeconds <= 0 || res.CooldownRemainingSeconds > 120 {
		t.Errorf("remaining = %d, want within window", res.CooldownRemainingSeconds)
	}

	st, _ := s.Store("demo")
	data, err := os.ReadFile(filepath.Join(st.Dir(), "inboxes", "lead.jsonl"))
	if err != nil {
		t.Fatalf("reading inbox: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Errorf("inbox lines = %d, want 1", n)
	}
	events := allEvents(t, s, "demo")
	if n := len(eventsOfKind(events, protocol.KindMessageSuppressed)); n != 1 {
		t.Errorf("message_suppressed events = %d, want 1", n)
	}
}

func TestCooldownKeyScopesToTaskAndType(t *testing.T) {
	s := newService(t)
	opts := SendOptions{CooldownSeconds: 300}

	a := envelope("idle_notification", "dev", "lead", map[string]any{"task_id": "T-1"})
	if res := mustSend(t, s, "demo", a, opts); res.Status != StatusSent {
		t.Fatalf("first status = %q", res.Status)
	}

	// Same recipient and type but a different task is outside the key.
	b := envelope("idle_notification", "dev", "lead", map[string]any{"task_id": "T-2"})
	if res := mustSend(t, s, "demo", b, opts); res.Status != StatusSent {
		t.Errorf("different task suppressed: %q", res.Status)
	}

	// Different type, same task.
	c := envelope("handoff", "dev", "lead", map[string]any{"task_id": "T-1"})
	if res := mustSend(t, s, "demo", c, opts); res.Status != StatusSent {
		t.Errorf("different type suppressed: %q", res.Status)
	}
}

func TestSendAckTimeoutDeadLetters(t *testing.T) {
	s := newService(t)
	clock := freezeClock(s, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	timeout, retries := 1, 1

	m := envelope("decision_required", "lead", "dev", map[string]any{
		"id":       "msg_ack_timeout_1",
		"trace_id": "tr_timeout",
	})
	res := mustSend(t, s, "demo", m, SendOptions{
		RequireAck:        true,
		AckTimeoutSeconds: &timeout,
		MaxRetries:        &retries,
	})

	if res.Status != StatusDeadLetter {
		t.Fatalf("status = %q, want dead_letter", res.Status)
	}
	if res.DeadLetter.Attempts() != 2 || res.DeadLetter.Reason() != "ack_timeout" {
		t.Errorf("dead letter = %v", res.DeadLetter)
	}
	if res.DeadLetter.CreatedAt() != protocol.FormatTime(*clock) {
		t.Errorf("dead letter created_at = %q, clock at %q", res.DeadLetter.CreatedAt(), protocol.FormatTime(*clock))
	}

	st, _ := s.Store("demo")
	letters, err := st.ListDeadLetters()
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(letters))
	}
	if letters[0].MessageID() != "msg_ack_timeout_1" || letters[0].ID() != res.DeadLetter.ID() {
		t.Errorf("dead letter record = %v", letters[0])
	}
	embedded, _ := letters[0]["message"].(map[string]any)
	if protocol.Message(embedded).ID() != "msg_ack_timeout_1" {
		t.Errorf("embedded message = %v", letters[0]["message"])
	}

	events := allEvents(t, s, "demo")
	retriesSeen := eventsOfKind(events, protocol.KindDeliveryRetry)
	if len(retriesSeen) != 1 {
		t.Fatalf("delivery_retry events = %d, want 1", len(retriesSeen))
	}
	if att, _ := retriesSeen[0].Payload()["attempt"].(float64); att != 1 {
		t.Errorf("retry attempt = %v, want 1", retriesSeen[0].Payload()["attempt"])
	}
	dead := eventsOfKind(events, protocol.KindDeliveryDeadLetter)
	if len(dead) != 1 {
		t.Fatalf("delivery_dead_letter events = %d, want 1", len(dead))
	}
	if got, _ := dead[0].Payload()["dead_letter_id"].(string); got != res.DeadLetter.ID() {
		t.Errorf("dead_letter_id = %q, want %q", got, res.DeadLetter.ID())
	}
}

func TestSendAckArrivesDuringWait(t *testing.T) {
	s := newService(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	st, err := s.Store("demo")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	acked := false
	s.sleep = func(d time.Duration) {
		at = at.Add(d)
		if !acked {
			acked = true
			if _, err := st.RecordAck("msg_waited_1", "dev", protocol.FormatTime(at), ""); err != nil {
				t.Errorf("RecordAck: %v", err)
			}
		}
	}

	timeout := 5
	m := envelope("handoff", "lead", "dev", map[string]any{"id": "msg_waited_1"})
	res := mustSend(t, s, "demo", m, SendOptions{RequireAck: true, AckTimeoutSeconds: &timeout})

	if res.Status != StatusAcked || res.Attempt != 1 {
		t.Fatalf("result = %q attempt %d, want acked on attempt 1", res.Status, res.Attempt)
	}
	if res.Ack == nil || res.Ack.Agent != "dev" {
		t.Errorf("ack = %+v", res.Ack)
	}
	events := allEvents(t, s, "demo")
	if n := len(eventsOfKind(events, protocol.KindDeliveryAcked)); n != 1 {
		t.Errorf("delivery_acked events = %d, want 1", n)
	}
}

func TestSendAckOnSecondAttempt(t *testing.T) {
	s := newService(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	st, err := s.Store("demo")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	sleeps := 0
	s.sleep = func(d time.Duration) {
		at = at.Add(d)
		sleeps++
		if sleeps == 2 {
			if _, err := st.RecordAck("msg_retry_1", "dev", protocol.FormatTime(at), ""); err != nil {
				t.Errorf("RecordAck: %v", err)
			}
		}
	}

	timeout, retries := 1, 1
	m := envelope("handoff", "lead", "dev", map[string]any{"id": "msg_retry_1"})
	res := mustSend(t, s, "demo", m, SendOptions{
		RequireAck:        true,
		AckTimeoutSeconds: &timeout,
		MaxRetries:        &retries,
	})

	if res.Status != StatusAcked || res.Attempt != 2 {
		t.Fatalf("result = %q attempt %d, want acked on attempt 2", res.Status, res.Attempt)
	}
	events := allEvents(t, s, "demo")
	if n := len(eventsOfKind(events, protocol.KindDeliveryRetry)); n != 1 {
		t.Errorf("delivery_retry events = %d, want 1", n)
	}
}
