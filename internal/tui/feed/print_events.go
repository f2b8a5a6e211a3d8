package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// PrintOptions configures plain-line event output.
type PrintOptions struct {
	// Follow keeps the stream open, polling for new events.
	Follow bool
	// Limit bounds the initial history; 0 or negative means everything.
	Limit int
	// Interval overrides the poll cadence in follow mode. Zero means the
	// watcher default.
	Interval time.Duration
}

// PrintEvents writes the team's events to w as plain lines, oldest first.
// With Follow it then polls the log and prints new events as they land,
// until the write fails (reader gone) or an I/O error surfaces twice in a
// row.
func PrintEvents(st *store.Store, w io.Writer, opts PrintOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = pollInterval
	}

	seen := make(map[string]bool)
	var backlog []protocol.Event
	err := st.IterEventsReverse(func(e protocol.Event) bool {
		if seen[e.ID()] {
			return false
		}
		seen[e.ID()] = true
		backlog = append(backlog, e)
		return opts.Limit <= 0 || len(backlog) < opts.Limit
	})
	if err != nil {
		return err
	}
	for i := len(backlog) - 1; i >= 0; i-- {
		if _, err := fmt.Fprintln(w, FormatEvent(backlog[i])); err != nil {
			return err
		}
	}
	if !opts.Follow {
		return nil
	}

	for {
		time.Sleep(interval)
		var fresh []protocol.Event
		err := st.IterEventsReverse(func(e protocol.Event) bool {
			if seen[e.ID()] {
				return false
			}
			fresh = append(fresh, e)
			return true
		})
		if err != nil {
			return err
		}
		for i := len(fresh) - 1; i >= 0; i-- {
			seen[fresh[i].ID()] = true
			if _, err := fmt.Fprintln(w, FormatEvent(fresh[i])); err != nil {
				return err
			}
		}
	}
}

// FormatEvent renders one event as a plain line: timestamp, kind, and the
// payload summary. No styling, so the output greps cleanly.
func FormatEvent(e protocol.Event) string {
	line := fmt.Sprintf("%s %-22s", e.CreatedAt(), e.Kind())
	if detail := plainDetail(e); detail != "" {
		line += " " + detail
	}
	return line
}

// plainDetail is eventDetail without the styling.
func plainDetail(e protocol.Event) string {
	p := e.Payload()
	detail := ""
	if msg, ok := p["message"].(map[string]any); ok {
		m := protocol.Message(msg)
		detail = fmt.Sprintf("%s->%s %s", m.From(), m.To(), m.ID())
	} else if id, ok := p["message_id"].(string); ok {
		detail = id
	}
	if agent, ok := p["agent"].(string); ok {
		detail += " by " + agent
	}
	if reason, ok := p["reason"].(string); ok {
		detail += " (" + reason + ")"
	}
	if task := e.TaskID(); task != "" {
		detail += " task=" + task
	}
	return detail
}
