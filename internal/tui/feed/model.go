// Package feed is the live event watcher: a scrollable terminal view of one
// team's event log that picks up new events as other processes append them,
// plus a plain-line printer for pipes and scripts.
package feed

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// pollInterval is how often the watcher re-reads the event files. The log
// is append-only, so polling newest-first and stopping at the first known
// id keeps each poll cheap.
const pollInterval = 2 * time.Second

// maxEventHistory bounds the in-memory scrollback.
const maxEventHistory = 1000

// KeyMap defines the watcher's key bindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the vim-style defaults.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "oldest"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "newest"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Bottom, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.Top, k.Bottom},
		{k.Help, k.Quit},
	}
}

// Model is the bubbletea model for the event watcher.
type Model struct {
	st    *store.Store
	limit int

	width  int
	height int

	viewport viewport.Model
	keys     KeyMap
	help     help.Model
	showHelp bool

	events []protocol.Event
	seen   map[string]bool
	err    error

	// pinned is true while the user has scrolled away from the bottom;
	// new events then stop yanking the view down.
	pinned bool
}

// NewModel returns a watcher over st showing up to limit events of history.
func NewModel(st *store.Store, limit int) *Model {
	if limit <= 0 || limit > maxEventHistory {
		limit = maxEventHistory
	}
	h := help.New()
	h.ShowAll = false
	return &Model{
		st:       st,
		limit:    limit,
		viewport: viewport.New(0, 0),
		keys:     DefaultKeyMap(),
		help:     h,
		seen:     make(map[string]bool),
	}
}

// eventsMsg carries newly discovered events, oldest first.
type eventsMsg struct {
	events []protocol.Event
	err    error
}

// pollTickMsg schedules the next poll.
type pollTickMsg struct{}

// Init starts the first poll and the poll timer.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchNew(),
		pollTick(),
		tea.SetWindowTitle("tc watch "+m.st.Team()),
	)
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// fetchNew reads events newer than anything already displayed. It walks the
// log newest-first and stops at the first id it has seen, so steady-state
// polls touch only the tail of the newest file. The command runs on its own
// goroutine, so it gets a snapshot of the seen set; Update keeps mutating
// the live one.
func (m *Model) fetchNew() tea.Cmd {
	st, limit := m.st, m.limit
	seen := make(map[string]bool, len(m.seen))
	for id := range m.seen {
		seen[id] = true
	}
	return func() tea.Msg {
		var fresh []protocol.Event
		err := st.IterEventsReverse(func(e protocol.Event) bool {
			if seen[e.ID()] {
				return false
			}
			fresh = append(fresh, e)
			return len(fresh) < limit
		})
		// Reverse scan yields newest first; display wants oldest first.
		for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
			fresh[i], fresh[j] = fresh[j], fresh[i]
		}
		return eventsMsg{events: fresh, err: err}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.refreshContent()
		return m, nil

	case eventsMsg:
		m.err = msg.err
		if len(msg.events) > 0 {
			for _, e := range msg.events {
				m.seen[e.ID()] = true
			}
			m.events = append(m.events, msg.events...)
			if len(m.events) > maxEventHistory {
				drop := m.events[:len(m.events)-maxEventHistory]
				for _, e := range drop {
					delete(m.seen, e.ID())
				}
				m.events = m.events[len(m.events)-maxEventHistory:]
			}
			m.refreshContent()
		}
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(m.fetchNew(), pollTick())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.resizeViewport()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.pinned = true
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		m.pinned = false
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.pinned = !m.viewport.AtBottom()
	return m, cmd
}

// resizeViewport fits the viewport under the header and above the footer.
func (m *Model) resizeViewport() {
	helpHeight := 1
	if m.showHelp {
		helpHeight = 2
	}
	// header + panel borders + status bar + help
	h := m.height - 1 - 2 - 1 - helpHeight
	if h < 3 {
		h = 3
	}
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	m.viewport.Width = w
	m.viewport.Height = h
}

// refreshContent re-renders the event lines into the viewport, keeping the
// view glued to the newest event unless the user scrolled away.
func (m *Model) refreshContent() {
	m.viewport.SetContent(m.renderEvents())
	if !m.pinned {
		m.viewport.GotoBottom()
	}
}
