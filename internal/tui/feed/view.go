package feed

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
	headerStyle = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.AdaptiveColor{Light: "#8a9199", Dark: "#3e4b59"}).PaddingLeft(1)
	statusStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(1)
)

// glyph maps an event kind to its one-cell marker.
func glyph(kind string) string {
	switch protocol.EventKind(kind) {
	case protocol.KindMessageSent:
		return style.Success.Render("+")
	case protocol.KindMessageAcked, protocol.KindDeliveryAcked:
		return style.Success.Render("✓")
	case protocol.KindMessageDuplicate, protocol.KindMessageAckDup:
		return style.Dim.Render("=")
	case protocol.KindMessageSuppressed:
		return style.Warning.Render("⊘")
	case protocol.KindDeliveryRetry:
		return style.Warning.Render("↻")
	case protocol.KindAckRejected:
		return style.Error.Render("!")
	case protocol.KindDeliveryDeadLetter:
		return style.Error.Render("✗")
	case protocol.KindRehydrateCompleted:
		return style.Info.Render("⟳")
	case protocol.KindInboxRead:
		return style.Dim.Render("·")
	default:
		return " "
	}
}

// View renders the TUI.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	sections := []string{
		m.renderHeader(),
		panelStyle.Width(m.width - 2).Render(m.viewport.View()),
		m.renderStatusBar(),
		m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("tc watch") + " " + style.Bold.Render(m.st.Team())
	count := style.Dim.Render(fmt.Sprintf("%d event(s)", len(m.events)))
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(count) - 4
	if gap < 1 {
		gap = 1
	}
	return headerStyle.Render(title + strings.Repeat(" ", gap) + count)
}

func (m *Model) renderStatusBar() string {
	if m.err != nil {
		return statusStyle.Render(style.Error.Render(fmt.Sprintf("read error: %v (retrying)", m.err)))
	}
	if m.pinned {
		return statusStyle.Render("scrolled, press G to follow new events")
	}
	return statusStyle.Render("following")
}

// renderEvents formats the scrollback, one line per event.
func (m *Model) renderEvents() string {
	if len(m.events) == 0 {
		return style.Dim.Render("no events yet")
	}
	lines := make([]string, 0, len(m.events))
	for _, e := range m.events {
		lines = append(lines, m.renderEvent(e))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderEvent(e protocol.Event) string {
	line := fmt.Sprintf("%s %s %-22s %s", glyph(e.Kind()), style.Dim.Render(e.CreatedAt()), e.Kind(), eventDetail(e))
	return line
}

// eventDetail summarizes the payload fields worth a glance.
func eventDetail(e protocol.Event) string {
	p := e.Payload()
	var parts []string
	if msg, ok := p["message"].(map[string]any); ok {
		m := protocol.Message(msg)
		parts = append(parts, fmt.Sprintf("%s→%s %s", m.From(), m.To(), m.ID()))
	}
	if id, ok := p["message_id"].(string); ok {
		parts = append(parts, id)
	}
	if agent, ok := p["agent"].(string); ok {
		parts = append(parts, "by "+agent)
	}
	if reason, ok := p["reason"].(string); ok {
		parts = append(parts, "("+reason+")")
	}
	if task := e.TaskID(); task != "" {
		parts = append(parts, style.Dim.Render("task="+task))
	}
	return strings.Join(parts, " ")
}
