package protocol

// EventKind classifies an audit event.
type EventKind string

// The closed set of event kinds the engine emits.
const (
	KindMessageSent        EventKind = "message_sent"
	KindMessageDuplicate   EventKind = "message_duplicate"
	KindMessageSuppressed  EventKind = "message_suppressed"
	KindMessageAcked       EventKind = "message_acked"
	KindMessageAckDup      EventKind = "message_ack_duplicate"
	KindAckRejected        EventKind = "ack_rejected"
	KindInboxRead          EventKind = "inbox_read"
	KindDeliveryRetry      EventKind = "delivery_retry"
	KindDeliveryAcked      EventKind = "delivery_acked"
	KindDeliveryDeadLetter EventKind = "delivery_dead_letter"
	KindRehydrateCompleted EventKind = "rehydrate_completed"
)

// Event is one audit record. Like Message it is an open record.
type Event map[string]any

// NewEvent builds an event with a fresh id and the current time. traceID and
// taskID are attached only when non-empty.
func NewEvent(kind EventKind, team string, payload map[string]any, traceID, taskID string) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	e := Event{
		"id":             NewID("evt"),
		"schema_version": SchemaVersion,
		"kind":           string(kind),
		"team":           team,
		"payload":        payload,
		"created_at":     Now(),
	}
	if traceID != "" {
		e["trace_id"] = traceID
	}
	if taskID != "" {
		e["task_id"] = taskID
	}
	return e
}

// ID returns the event id, or "" when absent.
func (e Event) ID() string { return stringField(e, "id") }

// Kind returns the event kind, or "" when absent.
func (e Event) Kind() string { return stringField(e, "kind") }

// Team returns the team, or "" when absent.
func (e Event) Team() string { return stringField(e, "team") }

// TraceID returns the trace correlator, or "" when absent.
func (e Event) TraceID() string { return stringField(e, "trace_id") }

// TaskID returns the task correlator, or "" when absent.
func (e Event) TaskID() string { return stringField(e, "task_id") }

// CreatedAt returns the creation timestamp, or "" when absent.
func (e Event) CreatedAt() string { return stringField(e, "created_at") }

// Payload returns the payload object, or nil when absent or mistyped.
func (e Event) Payload() map[string]any {
	p, _ := e["payload"].(map[string]any)
	return p
}

// MatchesTrace reports whether the event belongs to traceID: a match on the
// event's own trace_id, the payload's trace_id, or the trace_id of a message
// embedded in the payload.
func (e Event) MatchesTrace(traceID string) bool {
	if traceID == "" {
		return false
	}
	if e.TraceID() == traceID {
		return true
	}
	p := e.Payload()
	if p == nil {
		return false
	}
	if s, _ := p["trace_id"].(string); s == traceID {
		return true
	}
	if msg, ok := p["message"].(map[string]any); ok {
		if s, _ := msg["trace_id"].(string); s == traceID {
			return true
		}
	}
	return false
}
