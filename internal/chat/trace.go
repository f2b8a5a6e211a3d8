package chat

import (
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// TraceResult is the events that belong to one trace. With a limit the
// events are one page in chronological order and NextCursor anchors the
// next older page; without a limit they are the complete trace.
type TraceResult struct {
	Count      int              `json:"count"`
	Events     []protocol.Event `json:"events"`
	NextCursor *string          `json:"next_cursor"`
	Team       string           `json:"team"`
	TraceID    string           `json:"trace_id"`
}

// Trace collects the events matching traceID: by the event's own trace_id,
// by its payload's, or by the trace_id of a message embedded in the
// payload. limit <= 0 returns every match ordered by (created_at, id);
// limit > 0 pages newest-first with the same cursor rules as inbox reads.
func (s *Service) Trace(team, traceID string, limit int, cursor string) (*TraceResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		all, err := st.IterEvents()
		if err != nil {
			return nil, err
		}
		matches := []protocol.Event{}
		for _, e := range all {
			if e.MatchesTrace(traceID) {
				matches = append(matches, e)
			}
		}
		return &TraceResult{
			Count:   len(matches),
			Events:  matches,
			Team:    team,
			TraceID: traceID,
		}, nil
	}

	var collected []protocol.Event
	seenCursor := cursor == ""
	err = st.IterEventsReverse(func(e protocol.Event) bool {
		if !seenCursor {
			if e.ID() == cursor {
				seenCursor = true
			}
			return true
		}
		if !e.MatchesTrace(traceID) {
			return true
		}
		collected = append(collected, e)
		return len(collected) < limit+1
	})
	if err != nil {
		return nil, err
	}
	if cursor != "" && !seenCursor {
		return &TraceResult{Events: []protocol.Event{}, Team: team, TraceID: traceID}, nil
	}

	page := collected
	var nextCursor *string
	if len(collected) > limit {
		page = collected[:limit]
		id := page[len(page)-1].ID()
		nextCursor = &id
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	if page == nil {
		page = []protocol.Event{}
	}
	return &TraceResult{
		Count:      len(page),
		Events:     page,
		NextCursor: nextCursor,
		Team:       team,
		TraceID:    traceID,
	}, nil
}
