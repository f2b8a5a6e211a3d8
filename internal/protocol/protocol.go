// Package protocol defines the message envelope and event records exchanged
// through team inboxes, the closed sets of types and priorities, and the
// normalization and validation rules applied before anything is persisted.
//
// Messages and events are open records: producers may attach extra top-level
// fields and they survive normalize → write → read untouched. They are
// therefore modeled as maps with typed accessors rather than closed structs.
package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the only wire version this engine reads or writes.
const SchemaVersion = 1

// TimeLayout is the canonical timestamp format: second precision, UTC,
// literal Z suffix.
const TimeLayout = "2006-01-02T15:04:05Z"

// MessageType classifies an envelope.
type MessageType string

// The closed set of message types.
const (
	TypeTaskAssign            MessageType = "task_assign"
	TypeTaskUpdate            MessageType = "task_update"
	TypeIdleNotification      MessageType = "idle_notification"
	TypeHandoff               MessageType = "handoff"
	TypeDecisionRequired      MessageType = "decision_required"
	TypeShutdownRequest       MessageType = "shutdown_request"
	TypeShutdownApproved      MessageType = "shutdown_approved"
	TypeAgentWakeupRequired   MessageType = "agent_wakeup_required"
	TypeAgentShutdownRequired MessageType = "agent_shutdown_required"
	TypeAgentStarted          MessageType = "agent_started"
	TypeAgentStopped          MessageType = "agent_stopped"
	TypeAgentError            MessageType = "agent_error"
	TypeAgentTimeout          MessageType = "agent_timeout"
)

var messageTypes = map[MessageType]struct{}{
	TypeTaskAssign:            {},
	TypeTaskUpdate:            {},
	TypeIdleNotification:      {},
	TypeHandoff:               {},
	TypeDecisionRequired:      {},
	TypeShutdownRequest:       {},
	TypeShutdownApproved:      {},
	TypeAgentWakeupRequired:   {},
	TypeAgentShutdownRequired: {},
	TypeAgentStarted:          {},
	TypeAgentStopped:          {},
	TypeAgentError:            {},
	TypeAgentTimeout:          {},
}

// ValidMessageType reports whether s names a known message type.
func ValidMessageType(s string) bool {
	_, ok := messageTypes[MessageType(s)]
	return ok
}

// MessageTypes returns the closed set, for help text and validation errors.
func MessageTypes() []string {
	out := make([]string, 0, len(messageTypes))
	for t := range messageTypes {
		out = append(out, string(t))
	}
	return out
}

// Priority orders messages for human readers; the engine itself does not
// schedule by it.
type Priority string

// The closed set of priorities.
const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorities = map[Priority]struct{}{
	PriorityLow:      {},
	PriorityNormal:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

// ValidPriority reports whether s names a known priority.
func ValidPriority(s string) bool {
	_, ok := priorities[Priority(s)]
	return ok
}

// Message is one envelope. Keys beyond the required set are preserved.
type Message map[string]any

// ValidationError reports an envelope that failed Validate. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid message: " + e.Reason
}

// NewID returns "<prefix>_<12 hex chars>" with the hex drawn from a uniform
// random source.
func NewID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:6])
}

// Now returns the current time in the canonical format.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime renders t in the canonical format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts RFC 3339 timestamps (with Z or a numeric offset) and the
// offset-less "2006-01-02T15:04:05" form, which is taken as UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
	}
	return t, nil
}

// EpochOrZero returns the unix seconds of s, or 0 when s does not parse.
// Used as the primary sort key for event ordering; the id is the tiebreak.
func EpochOrZero(s string) int64 {
	t, err := ParseTime(s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// Normalize fills the defaulted envelope fields in place and validates the
// result. Missing id, created_at, schema_version, priority, and payload get
// defaults; everything else must already be present and well formed.
func Normalize(m Message) (Message, error) {
	if m == nil {
		m = Message{}
	}
	setDefault(m, "id", func() any { return NewID("msg") })
	setDefault(m, "created_at", func() any { return Now() })
	setDefault(m, "schema_version", func() any { return SchemaVersion })
	setDefault(m, "priority", func() any { return string(PriorityNormal) })
	setDefault(m, "payload", func() any { return map[string]any{} })
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

func setDefault(m Message, key string, value func() any) {
	if v, ok := m[key]; !ok || v == nil {
		m[key] = value()
	}
}

// Validate enforces the envelope contract: required fields, schema version,
// closed type and priority sets, object payload, parseable created_at.
func Validate(m Message) error {
	for _, field := range []string{"id", "schema_version", "type", "from", "to", "payload", "created_at"} {
		if _, ok := m[field]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("missing field %q", field)}
		}
	}
	if v, ok := intValue(m["schema_version"]); !ok || v != SchemaVersion {
		return &ValidationError{Reason: fmt.Sprintf("unsupported schema_version %v", m["schema_version"])}
	}
	if !ValidMessageType(m.Type()) {
		return &ValidationError{Reason: fmt.Sprintf("unknown type %q", m.Type())}
	}
	if m.From() == "" {
		return &ValidationError{Reason: "field \"from\" must be a non-empty string"}
	}
	if m.To() == "" {
		return &ValidationError{Reason: "field \"to\" must be a non-empty string"}
	}
	if m.ID() == "" {
		return &ValidationError{Reason: "field \"id\" must be a non-empty string"}
	}
	if _, ok := m["payload"].(map[string]any); !ok {
		return &ValidationError{Reason: "payload must be an object"}
	}
	if !ValidPriority(m.Priority()) {
		return &ValidationError{Reason: fmt.Sprintf("unknown priority %q", m.Priority())}
	}
	if _, err := ParseTime(m.CreatedAt()); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("created_at %q is not ISO-8601", m.CreatedAt())}
	}
	return nil
}

// ID returns the message id, or "" when absent.
func (m Message) ID() string { return stringField(m, "id") }

// Type returns the message type, or "" when absent.
func (m Message) Type() string { return stringField(m, "type") }

// From returns the sender, or "" when absent.
func (m Message) From() string { return stringField(m, "from") }

// To returns the recipient, or "" when absent.
func (m Message) To() string { return stringField(m, "to") }

// TaskID returns the task correlator, or "" when absent.
func (m Message) TaskID() string { return stringField(m, "task_id") }

// TraceID returns the trace correlator, or "" when absent.
func (m Message) TraceID() string { return stringField(m, "trace_id") }

// CreatedAt returns the creation timestamp, or "" when absent.
func (m Message) CreatedAt() string { return stringField(m, "created_at") }

// DeliveryID returns the delivery correlator, or "" when absent.
func (m Message) DeliveryID() string { return stringField(m, "delivery_id") }

// Priority returns the priority, defaulting to normal when absent.
func (m Message) Priority() string {
	if p := stringField(m, "priority"); p != "" {
		return p
	}
	return string(PriorityNormal)
}

// Payload returns the payload object, or nil when absent or mistyped.
func (m Message) Payload() map[string]any {
	p, _ := m["payload"].(map[string]any)
	return p
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// intValue coerces the numeric encodings JSON round-trips produce.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
