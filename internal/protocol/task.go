package protocol

// Task is a snapshot of task state derived from message traffic. It is an
// open record: overlay fields from task_update payloads are kept as sent.
type Task map[string]any

// TaskID returns the task id, or "" when absent.
func (t Task) TaskID() string { return stringField(t, "task_id") }

// Owner returns the owning agent, or "" when absent.
func (t Task) Owner() string { return stringField(t, "owner") }

// Status returns the task status, or "" when absent.
func (t Task) Status() string { return stringField(t, "status") }

// CreatedAt returns the creation timestamp, or "" when absent.
func (t Task) CreatedAt() string { return stringField(t, "created_at") }

// UpdatedAt returns the last-write timestamp, or "" when absent.
func (t Task) UpdatedAt() string { return stringField(t, "updated_at") }

// Blocked reports whether the snapshot carries a truthy blocked flag.
func (t Task) Blocked() bool { return Truthy(t["blocked"]) }

// Truthy coerces a JSON value to a boolean the way the blocked flag expects:
// nil, false, zero numbers, empty strings, and empty collections are false;
// everything else is true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}

// DeadLetter is one failed-delivery record.
type DeadLetter map[string]any

// ID returns the dead-letter id, or "" when absent.
func (d DeadLetter) ID() string { return stringField(d, "id") }

// MessageID returns the id of the undelivered message, or "" when absent.
func (d DeadLetter) MessageID() string { return stringField(d, "message_id") }

// Reason returns why delivery failed, or "" when absent.
func (d DeadLetter) Reason() string { return stringField(d, "reason") }

// CreatedAt returns the creation timestamp, or "" when absent.
func (d DeadLetter) CreatedAt() string { return stringField(d, "created_at") }

// Attempts returns how many delivery attempts were made.
func (d DeadLetter) Attempts() int {
	n, _ := intValue(d["attempts"])
	return n
}
