// Package chat is the messaging service: it drives the send pipeline,
// inbox reads, acknowledgements, task projection, tracing, and index
// rehydration on top of the per-team store.
//
// The service is a library, not a server. Every operation is synchronous
// and safe to invoke from multiple processes at once; the store's named
// locks do the serializing.
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/log"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

// Status strings returned by service operations.
const (
	StatusSent           = "sent"
	StatusDuplicate      = "duplicate"
	StatusSuppressed     = "suppressed"
	StatusAcked          = "acked"
	StatusAlreadyAcked   = "already_acked"
	StatusDeadLetter     = "dead_letter"
	StatusNotFound       = "not_found"
	StatusWrongRecipient = "wrong_recipient"
)

// Service exposes the messaging operations for one data root. It caches one
// store per team; stores are cheap but carry the per-team lock manager and
// malformed-line accounting, so reuse keeps diagnostics coherent.
type Service struct {
	root string

	mu     sync.Mutex
	stores map[string]*store.Store

	logger zerolog.Logger

	// Clock and sleep seams. Production uses the real ones.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewService returns a Service rooted at the given data directory.
func NewService(root string) *Service {
	return &Service{
		root:   root,
		stores: make(map[string]*store.Store),
		logger: log.With("chat"),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Root returns the data root the service operates on.
func (s *Service) Root() string { return s.root }

// Store returns the team's store, creating the on-disk layout on first use.
// Teams come into existence implicitly: the first operation naming one lays
// down its directories. The cache is keyed by the canonical team name, so
// spellings that validate to the same team share one store.
func (s *Service) Store(team string) (*store.Store, error) {
	canonical, err := ident.Validate(team, "team")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[canonical]; ok {
		return st, nil
	}
	st, err := store.New(s.root, canonical)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureLayout(); err != nil {
		return nil, err
	}
	s.stores[canonical] = st
	return st, nil
}

// Teams lists the team names present under the data root.
func (s *Service) Teams() ([]string, error) {
	return store.ListTeams(s.root)
}

// InitResult reports what InitTeam did.
type InitResult struct {
	Created bool            `json:"created"`
	Meta    *store.TeamMeta `json:"meta"`
	Team    string          `json:"team"`
}

// InitTeam lays down a team's directories and team.json. Calling it again
// merges the member list instead of failing, so provisioning scripts can
// re-run it. Each member gets an empty inbox so the roster is visible to
// status before any message lands.
func (s *Service) InitTeam(team, name string, members []string) (*InitResult, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}

	canonical := make([]string, 0, len(members))
	for _, m := range members {
		c, err := ident.Validate(m, "member")
		if err != nil {
			return nil, err
		}
		canonical = append(canonical, c)
	}

	meta, err := st.ReadTeamMeta()
	if err != nil {
		return nil, err
	}
	created := meta == nil
	if meta == nil {
		if name == "" {
			name = team
		}
		meta = &store.TeamMeta{
			CreatedAt:     protocol.FormatTime(s.now()),
			Name:          name,
			SchemaVersion: protocol.SchemaVersion,
		}
	} else if name != "" {
		meta.Name = name
	}
	meta.Members = mergeMembers(meta.Members, canonical)

	if err := st.WriteTeamMeta(meta); err != nil {
		return nil, err
	}
	for _, m := range meta.Members {
		if err := st.TouchInbox(m); err != nil {
			return nil, err
		}
	}

	s.logger.Debug().Str("team", team).Int("members", len(meta.Members)).Msg("team initialized")
	return &InitResult{Created: created, Meta: meta, Team: team}, nil
}

func mergeMembers(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	var out []string
	for _, m := range append(append([]string{}, existing...), added...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (s *Service) nowStamp() string {
	return protocol.FormatTime(s.now())
}

// newEvent builds an event stamped with the service clock, so every record
// the service writes carries timestamps from the same source.
func (s *Service) newEvent(kind protocol.EventKind, team string, payload map[string]any, traceID, taskID string) protocol.Event {
	e := protocol.NewEvent(kind, team, payload, traceID, taskID)
	e["created_at"] = s.nowStamp()
	return e
}
