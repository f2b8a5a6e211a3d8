package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/xcawolfe-amzn/teamchat/internal/chat"
	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/log"
)

// Defaults for the sweep cadence. The interval is how often cron fires the
// notifier; the cooldown is the minimum gap between nudges to one member
// whose unread count has not grown.
const (
	DefaultCooldownMinutes = 15
	DefaultIntervalMinutes = 5
)

// ConfigFile is the optional notifier config, relative to the data root.
const ConfigFile = "notify.toml"

// Config tunes the notifier. Zero values fall back to the defaults, so a
// partial notify.toml is fine.
type Config struct {
	CooldownMinutes int      `toml:"cooldown_minutes"`
	IntervalMinutes int      `toml:"interval_minutes"`
	Teams           []string `toml:"teams"`
}

// DefaultConfig returns the stock tuning: sweep all teams, nudge at most
// every 15 minutes unless unread counts grow.
func DefaultConfig() Config {
	return Config{
		CooldownMinutes: DefaultCooldownMinutes,
		IntervalMinutes: DefaultIntervalMinutes,
	}
}

// LoadConfig reads notify.toml under root. A missing file yields the
// defaults; a present file only overrides the fields it sets.
func LoadConfig(root string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", ConfigFile, err)
	}
	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}
	if file.CooldownMinutes > 0 {
		cfg.CooldownMinutes = file.CooldownMinutes
	}
	if file.IntervalMinutes > 0 {
		cfg.IntervalMinutes = file.IntervalMinutes
	}
	if len(file.Teams) > 0 {
		cfg.Teams = file.Teams
	}
	return cfg, nil
}

// memberState is the per-member record in notifier_state.json. Times are
// epoch seconds.
type memberState struct {
	LastNudgeAt     int64 `json:"last_nudge_at"`
	LastUnreadCount int   `json:"last_unread_count"`
}

type notifierState struct {
	Members map[string]*memberState `json:"members"`
	Version int                     `json:"version"`
}

func statePath(teamDir string) string {
	return filepath.Join(teamDir, "state", "notifier_state.json")
}

// loadState reads a team's notifier state. Missing or corrupt state resets
// to empty rather than failing the sweep.
func loadState(path string) *notifierState {
	var s notifierState
	if err := fsio.ReadJSON(path, &s); err != nil || s.Members == nil {
		return &notifierState{Version: 1, Members: make(map[string]*memberState)}
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return &s
}

// shouldNudge decides whether a member gets nudged this sweep. Growth in
// the unread count bypasses the cooldown so fresh mail is announced
// promptly; a count that merely persists waits the cooldown out.
func shouldNudge(ms *memberState, unread int, now time.Time, cooldown time.Duration) bool {
	if unread <= 0 {
		return false
	}
	if ms == nil {
		return true
	}
	if unread > ms.LastUnreadCount {
		return true
	}
	return now.Unix()-ms.LastNudgeAt >= int64(cooldown/time.Second)
}

// Sender delivers one nudge to one agent. The production sender is
// QueueSender; tests substitute a recorder.
type Sender interface {
	Send(team, agent, message string) error
}

// QueueSender drops nudges on the recipient's queue under the data root.
type QueueSender struct {
	Root string
}

func (q QueueSender) Send(team, agent, message string) error {
	return Enqueue(q.Root, agent, Nudge{Sender: "notifier", Message: message})
}

// NudgedMember identifies one nudge delivered during a sweep.
type NudgedMember struct {
	Member string `json:"member"`
	Team   string `json:"team"`
	Unread int    `json:"unread"`
}

// Summary reports one sweep. OK is false when any team or member errored;
// the CLI maps that to a nonzero exit for cron health checks.
type Summary struct {
	Errors        []string       `json:"errors,omitempty"`
	MembersNudged []NudgedMember `json:"members_nudged"`
	NudgedCount   int            `json:"nudged_count"`
	OK            bool           `json:"ok"`
	TeamsScanned  int            `json:"teams_scanned"`
}

// Notifier sweeps teams for unread mail and nudges the members holding it.
type Notifier struct {
	svc    *chat.Service
	cfg    Config
	sender Sender
	logger zerolog.Logger

	now func() time.Time
}

// New returns a Notifier over svc. A nil sender gets the queue-backed
// default.
func New(svc *chat.Service, cfg Config, sender Sender) *Notifier {
	if sender == nil {
		sender = QueueSender{Root: svc.Root()}
	}
	if cfg.CooldownMinutes <= 0 {
		cfg.CooldownMinutes = DefaultCooldownMinutes
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = DefaultIntervalMinutes
	}
	return &Notifier{
		svc:    svc,
		cfg:    cfg,
		sender: sender,
		logger: log.With("notify"),
		now:    time.Now,
	}
}

// Run performs one sweep. Per-team and per-member failures are collected in
// the summary rather than aborting; the sweep visits every team it can.
func (n *Notifier) Run() *Summary {
	sum := &Summary{MembersNudged: []NudgedMember{}}

	teams := n.cfg.Teams
	if len(teams) == 0 {
		listed, err := n.svc.Teams()
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("listing teams: %v", err))
			return sum
		}
		teams = listed
	}

	now := n.now()
	cooldown := time.Duration(n.cfg.CooldownMinutes) * time.Minute

	for _, team := range teams {
		st, err := n.svc.Store(team)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", team, err))
			continue
		}
		unread, err := st.UnreadCounts()
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: unread counts: %v", team, err))
			continue
		}
		sum.TeamsScanned++

		spath := statePath(st.Dir())
		state := loadState(spath)
		changed := false

		members := make([]string, 0, len(unread))
		for m := range unread {
			members = append(members, m)
		}
		sort.Strings(members)

		for _, member := range members {
			count := unread[member]
			ms := state.Members[member]

			if !shouldNudge(ms, count, now, cooldown) {
				// Track the count even when skipping, so a later
				// increase is recognized as new mail.
				if ms == nil {
					ms = &memberState{}
					state.Members[member] = ms
				}
				ms.LastUnreadCount = count
				changed = true
				continue
			}

			msg := fmt.Sprintf(
				"Nudge (every %dm): you have %d unread message(s) in team %q. Run 'tc read --unread', ack what you handled, then continue.",
				n.cfg.IntervalMinutes, count, team)
			if err := n.sender.Send(team, member, msg); err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("%s:%s: send failed: %v", team, member, err))
				continue
			}

			if ms == nil {
				ms = &memberState{}
				state.Members[member] = ms
			}
			ms.LastNudgeAt = now.Unix()
			ms.LastUnreadCount = count
			changed = true

			sum.MembersNudged = append(sum.MembersNudged, NudgedMember{Member: member, Team: team, Unread: count})
			n.logger.Info().Str("team", team).Str("member", member).Int("unread", count).Msg("nudged")
		}

		if changed {
			if err := fsio.WriteJSONAtomic(spath, state); err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("%s: saving state: %v", team, err))
			}
		}
	}

	sum.NudgedCount = len(sum.MembersNudged)
	sum.OK = len(sum.Errors) == 0
	return sum
}
