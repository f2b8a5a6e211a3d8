// Package store implements the durable team store: append-only inbox and
// event logs with side indexes, task snapshots, the cooldown ledger, and
// dead-letter files, all under a single data root.
//
// Layout per team:
//
//	teams/<T>/
//	  team.json                       team metadata
//	  config.json                     optional ack policy overrides
//	  inboxes/<agent>.jsonl           append-only per-recipient log
//	  events/<YYYY-MM-DD>.jsonl       append-only date-sharded event log
//	  tasks/<task_id>.json            task snapshot, last-writer-wins
//	  state/                          JSON indexes (monolithic or sharded)
//	  dead-letter/<YYYY-MM-DD>.jsonl  failed-delivery records
//	  locks/<name>.lock               advisory lock files
//
// Logs are the source of truth; everything under state/ and tasks/ can be
// rebuilt from them.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
	"github.com/xcawolfe-amzn/teamchat/internal/ident"
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
)

// Store is one team's slice of the data root. Instances are cheap; all state
// lives on disk. Methods are safe for concurrent use across goroutines and
// processes.
type Store struct {
	root  string
	team  string
	dir   string
	locks *lock.Manager
	mal   *fsio.MalformedLog

	now func() time.Time
}

// New returns a store for team under root. The team name is validated here;
// nothing touches the filesystem until an operation runs.
func New(root, team string) (*Store, error) {
	t, err := ident.Validate(team, "team")
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, "teams", t)
	return &Store{
		root:  root,
		team:  t,
		dir:   dir,
		locks: lock.NewManager(filepath.Join(dir, "locks")),
		mal:   fsio.NewMalformedLog(),
		now:   time.Now,
	}, nil
}

// Team returns the validated team name.
func (s *Store) Team() string { return s.team }

// Dir returns the team directory under the data root.
func (s *Store) Dir() string { return s.dir }

// Malformed returns the malformed-JSONL observations accumulated by this
// store's readers, keyed by file path.
func (s *Store) Malformed() map[string]fsio.MalformedEntry { return s.mal.Snapshot() }

// EnsureLayout creates the team directory tree. Idempotent.
func (s *Store) EnsureLayout() error {
	for _, d := range []string{
		s.dir,
		s.inboxDir(),
		s.eventsDir(),
		s.tasksDir(),
		s.stateDir(),
		s.deadLetterDir(),
		filepath.Join(s.dir, "locks"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating team layout: %w", err)
		}
	}
	return nil
}

func (s *Store) inboxDir() string      { return filepath.Join(s.dir, "inboxes") }
func (s *Store) eventsDir() string     { return filepath.Join(s.dir, "events") }
func (s *Store) tasksDir() string      { return filepath.Join(s.dir, "tasks") }
func (s *Store) stateDir() string      { return filepath.Join(s.dir, "state") }
func (s *Store) deadLetterDir() string { return filepath.Join(s.dir, "dead-letter") }

func (s *Store) teamMetaPath() string { return filepath.Join(s.dir, "team.json") }
func (s *Store) configPath() string   { return filepath.Join(s.dir, "config.json") }

func (s *Store) inboxPath(agent string) (string, error) {
	a, err := ident.Validate(agent, "agent")
	if err != nil {
		return "", err
	}
	return filepath.Join(s.inboxDir(), a+".jsonl"), nil
}

// TeamMeta is the content of team.json.
type TeamMeta struct {
	CreatedAt     string   `json:"created_at"`
	Members       []string `json:"members"`
	Name          string   `json:"name"`
	SchemaVersion int      `json:"schema_version"`
}

// ReadTeamMeta returns the team metadata, or nil when team.json is absent.
func (s *Store) ReadTeamMeta() (*TeamMeta, error) {
	var meta TeamMeta
	if err := fsio.ReadJSON(s.teamMetaPath(), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
}

// WriteTeamMeta replaces team.json atomically.
func (s *Store) WriteTeamMeta(meta *TeamMeta) error {
	return fsio.WriteJSONAtomic(s.teamMetaPath(), meta)
}

// AckRule is one entry of the ack policy: either field may be left unset to
// inherit the default.
type AckRule struct {
	AckTimeoutSeconds *int `json:"ack_timeout_seconds,omitempty"`
	MaxRetries        *int `json:"max_retries,omitempty"`
}

// TeamConfig is the content of config.json.
type TeamConfig struct {
	AckPolicy map[string]AckRule `json:"ack_policy,omitempty"`
}

// ReadConfig returns the team configuration; a missing config.json yields an
// empty config.
func (s *Store) ReadConfig() (*TeamConfig, error) {
	var cfg TeamConfig
	if err := fsio.ReadJSON(s.configPath(), &cfg); err != nil {
		if os.IsNotExist(err) {
			return &TeamConfig{}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Agents lists the agents that have an inbox file, sorted.
func (s *Store) Agents() ([]string, error) {
	entries, err := os.ReadDir(s.inboxDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var agents []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		agents = append(agents, strings.TrimSuffix(name, ".jsonl"))
	}
	sort.Strings(agents)
	return agents, nil
}

// ListTeams returns the team names that exist under root, sorted.
func ListTeams(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, "teams"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var teams []string
	for _, e := range entries {
		if e.IsDir() {
			teams = append(teams, e.Name())
		}
	}
	sort.Strings(teams)
	return teams, nil
}

// dateOf extracts the YYYY-MM-DD prefix that names dated log files.
// Timestamps too short to carry one fall into the "unknown" file.
func dateOf(createdAt string) string {
	if len(createdAt) >= 10 {
		return createdAt[:10]
	}
	return "unknown"
}

// listJSONLFiles returns the .jsonl files directly under dir, sorted by
// name. Dated filenames sort chronologically.
func listJSONLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
