package chat

import (
	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// ReadResult is one page of an agent's inbox, oldest-first, plus the cursor
// for the next (older) page. NextCursor is null when no older page exists.
type ReadResult struct {
	Agent      string             `json:"agent"`
	Count      int                `json:"count"`
	Messages   []protocol.Message `json:"messages"`
	NextCursor *string            `json:"next_cursor"`
	Team       string             `json:"team"`
}

// ReadInbox pages through an agent's inbox and records an inbox_read event
// describing the page served.
func (s *Service) ReadInbox(team, agent string, unreadOnly bool, limit int, cursor string) (*ReadResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	canonical, err := ident.Validate(agent, "agent")
	if err != nil {
		return nil, err
	}

	messages, nextCursor, err := st.ListMessagesWindow(canonical, unreadOnly, limit, cursor)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"agent":       canonical,
		"count":       len(messages),
		"cursor":      nullable(cursor),
		"next_cursor": nullableP(nextCursor),
		"unread_only": unreadOnly,
	}
	ev := s.newEvent(protocol.KindInboxRead, team, payload, "", "")
	if _, err := st.AppendEvent(ev); err != nil {
		return nil, err
	}

	return &ReadResult{
		Agent:      canonical,
		Count:      len(messages),
		Messages:   messages,
		NextCursor: nextCursor,
		Team:       team,
	}, nil
}

// AckResult is the outcome of an acknowledgement. Status is one of acked,
// already_acked, not_found, or wrong_recipient; Expected names the actual
// recipient on wrong_recipient.
type AckResult struct {
	Expected string `json:"expected,omitempty"`
	Status   string `json:"status"`
}

// Ack records that agent has acknowledged messageID. Rejections are not
// errors: they come back as structured statuses, each paired with an
// ack_rejected event, so misdirected acks stay visible in the history.
func (s *Service) Ack(team, agent, messageID string) (*AckResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	canonical, err := ident.Validate(agent, "agent")
	if err != nil {
		return nil, err
	}

	m, err := st.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		ev := s.newEvent(protocol.KindAckRejected, team, map[string]any{
			"agent":      canonical,
			"message_id": messageID,
			"reason":     "message_not_found",
		}, "", "")
		if _, err := st.AppendEvent(ev); err != nil {
			return nil, err
		}
		return &AckResult{Status: StatusNotFound}, nil
	}
	if m.To() != canonical {
		ev := s.newEvent(protocol.KindAckRejected, team, map[string]any{
			"agent":      canonical,
			"expected":   m.To(),
			"message_id": messageID,
			"reason":     "wrong_recipient",
		}, m.TraceID(), m.TaskID())
		if _, err := st.AppendEvent(ev); err != nil {
			return nil, err
		}
		return &AckResult{Expected: m.To(), Status: StatusWrongRecipient}, nil
	}

	recorded, err := st.RecordAck(messageID, canonical, s.nowStamp(), m.DeliveryID())
	if err != nil {
		return nil, err
	}
	kind, status := protocol.KindMessageAcked, StatusAcked
	if !recorded {
		kind, status = protocol.KindMessageAckDup, StatusAlreadyAcked
	}
	ev := s.newEvent(kind, team, map[string]any{
		"agent":      canonical,
		"message_id": messageID,
	}, m.TraceID(), m.TaskID())
	if _, err := st.AppendEvent(ev); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("team", team).Str("id", messageID).Str("agent", canonical).Str("status", status).Msg("ack recorded")
	return &AckResult{Status: status}, nil
}

// nullable maps the empty string to JSON null inside event payloads.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableP(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
