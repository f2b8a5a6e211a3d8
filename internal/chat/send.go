package chat

import (
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// ackPollInterval is the cadence of the ack waiter.
const ackPollInterval = time.Second

// SendOptions carries the delivery knobs of one send. The pointer fields
// distinguish "not given" from an explicit zero; nil defers to the team's
// ack policy.
type SendOptions struct {
	AckTimeoutSeconds *int
	CooldownSeconds   int
	MaxRetries        *int
	RequireAck        bool
}

// SendResult is the outcome of a send. Status is one of sent, duplicate,
// suppressed, acked, or dead_letter; the other fields are populated per
// status.
type SendResult struct {
	Ack                      *store.AckEntry     `json:"ack,omitempty"`
	Attempt                  int                 `json:"attempt,omitempty"`
	CooldownRemainingSeconds int                 `json:"cooldown_remaining_seconds,omitempty"`
	DeadLetter               protocol.DeadLetter `json:"dead_letter,omitempty"`
	Event                    protocol.Event      `json:"event,omitempty"`
	Message                  protocol.Message    `json:"message"`
	Reason                   string              `json:"reason,omitempty"`
	Status                   string              `json:"status"`
}

// Send runs the delivery pipeline for one envelope: normalize and validate,
// check the cooldown ledger, append to the recipient inbox, record events,
// project the task snapshot, and, when an ack is required, wait for it with
// retries before falling back to the dead-letter log.
//
// Identifier checks all happen before the first write, so a rejected send
// leaves no partial filesystem effect.
func (s *Service) Send(team string, m protocol.Message, opts SendOptions) (*SendResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}

	if m == nil {
		m = protocol.Message{}
	}
	if m["created_at"] == nil || m["created_at"] == "" {
		m["created_at"] = s.nowStamp()
	}
	if m, err = protocol.Normalize(m); err != nil {
		return nil, err
	}
	if err := canonicalizeAddresses(m); err != nil {
		return nil, err
	}

	remaining, err := st.CheckAndRecordCooldown(cooldownKey(m), opts.CooldownSeconds)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		ev := s.newEvent(protocol.KindMessageSuppressed, team, map[string]any{
			"cooldown_remaining_seconds": remaining,
			"message":                    m,
			"reason":                     "cooldown",
		}, m.TraceID(), m.TaskID())
		if _, err := st.AppendEvent(ev); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("team", team).Str("id", m.ID()).Int("remaining", remaining).Msg("send suppressed by cooldown")
		return &SendResult{
			CooldownRemainingSeconds: remaining,
			Message:                  m,
			Reason:                   "cooldown",
			Status:                   StatusSuppressed,
		}, nil
	}

	inserted, err := st.UpsertMessage(m)
	if err != nil {
		return nil, err
	}
	kind, status := protocol.KindMessageSent, StatusSent
	if !inserted {
		kind, status = protocol.KindMessageDuplicate, StatusDuplicate
	}
	ev := s.newEvent(kind, team, map[string]any{"message": m}, m.TraceID(), m.TaskID())
	if _, err := st.AppendEvent(ev); err != nil {
		return nil, err
	}

	if inserted {
		if err := s.applyTaskSnapshot(st, m); err != nil {
			return nil, err
		}
	}
	s.logger.Debug().Str("team", team).Str("id", m.ID()).Str("to", m.To()).Str("status", status).Msg("message stored")

	if !opts.RequireAck {
		return &SendResult{Event: ev, Message: m, Status: status}, nil
	}

	cfg, err := st.ReadConfig()
	if err != nil {
		return nil, err
	}
	policy := resolveAckPolicy(cfg, m.Type(), opts.AckTimeoutSeconds, opts.MaxRetries)
	return s.deliverWithAck(st, team, m, policy)
}

// deliverWithAck runs the attempt loop: each attempt waits one full ack
// window, retrying until the budget is spent, then dead-letters the message.
func (s *Service) deliverWithAck(st *store.Store, team string, m protocol.Message, policy ackPolicy) (*SendResult, error) {
	attempts := policy.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		entry, acked, err := s.waitForAck(st, m.ID(), policy.timeoutSeconds)
		if err != nil {
			return nil, err
		}
		if acked {
			ev := s.newEvent(protocol.KindDeliveryAcked, team, map[string]any{
				"acked_at":   entry.AckedAt,
				"agent":      entry.Agent,
				"attempt":    attempt,
				"message_id": m.ID(),
			}, m.TraceID(), m.TaskID())
			if _, err := st.AppendEvent(ev); err != nil {
				return nil, err
			}
			return &SendResult{Ack: entry, Attempt: attempt, Message: m, Status: StatusAcked}, nil
		}
		if attempt < attempts {
			ev := s.newEvent(protocol.KindDeliveryRetry, team, map[string]any{
				"attempt":         attempt,
				"message_id":      m.ID(),
				"timeout_seconds": policy.timeoutSeconds,
			}, m.TraceID(), m.TaskID())
			if _, err := st.AppendEvent(ev); err != nil {
				return nil, err
			}
		}
	}

	d := protocol.DeadLetter{
		"attempts":       attempts,
		"created_at":     s.nowStamp(),
		"id":             protocol.NewID("dlq"),
		"message":        m,
		"message_id":     m.ID(),
		"reason":         "ack_timeout",
		"schema_version": protocol.SchemaVersion,
		"team":           team,
	}
	if taskID := m.TaskID(); taskID != "" {
		d["task_id"] = taskID
	}
	if traceID := m.TraceID(); traceID != "" {
		d["trace_id"] = traceID
	}
	if err := st.WriteDeadLetter(d); err != nil {
		return nil, err
	}
	ev := s.newEvent(protocol.KindDeliveryDeadLetter, team, map[string]any{
		"attempts":       attempts,
		"dead_letter_id": d.ID(),
		"message_id":     m.ID(),
	}, m.TraceID(), m.TaskID())
	if _, err := st.AppendEvent(ev); err != nil {
		return nil, err
	}
	s.logger.Warn().Str("team", team).Str("id", m.ID()).Int("attempts", attempts).Msg("message dead-lettered")
	return &SendResult{DeadLetter: d, Message: m, Status: StatusDeadLetter}, nil
}

// waitForAck polls the ack index once a second until the deadline, then does
// one final read; an ack can land between the last poll and expiry.
func (s *Service) waitForAck(st *store.Store, messageID string, timeoutSeconds int) (*store.AckEntry, bool, error) {
	if timeoutSeconds < 1 {
		timeoutSeconds = 1
	}
	deadline := s.now().Add(time.Duration(timeoutSeconds) * time.Second)
	for s.now().Before(deadline) {
		entry, acked, err := st.GetAck(messageID)
		if err != nil {
			return nil, false, err
		}
		if acked {
			return entry, true, nil
		}
		s.sleep(ackPollInterval)
	}
	return st.GetAck(messageID)
}

// DeadLetters lists the team's failed-delivery records, oldest first.
func (s *Service) DeadLetters(team string) ([]protocol.DeadLetter, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	return st.ListDeadLetters()
}

// cooldownKey scopes suppression to recipient, task, and message type.
func cooldownKey(m protocol.Message) string {
	taskID := m.TaskID()
	if taskID == "" {
		taskID = "-"
	}
	return m.To() + "::" + taskID + "::" + m.Type()
}

// canonicalizeAddresses validates from, to, and task_id as path-safe
// identifiers and writes back their trimmed forms.
func canonicalizeAddresses(m protocol.Message) error {
	from, err := ident.Validate(m.From(), "sender")
	if err != nil {
		return err
	}
	to, err := ident.Validate(m.To(), "recipient")
	if err != nil {
		return err
	}
	m["from"], m["to"] = from, to
	if taskID := m.TaskID(); taskID != "" {
		canonical, err := ident.Validate(taskID, "task_id")
		if err != nil {
			return err
		}
		m["task_id"] = canonical
	}
	return nil
}
