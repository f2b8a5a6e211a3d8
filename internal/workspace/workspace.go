// Package workspace resolves the data root, the directory that holds
// teams/<team>/ state. Resolution is explicit: a flag or an environment
// variable names the root, and when neither does the caller gets an error
// instead of a guessed directory. Guessing puts team state wherever the
// command happened to run, which is how split mailboxes are made.
package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Environment overrides, strongest first. REPO_ROOT is the historical name
// and keeps existing deployments working.
const (
	EnvRoot     = "TEAM_CHAT_ROOT"
	EnvRepoRoot = "REPO_ROOT"
)

// ErrNoDataRoot means nothing named the data root.
var ErrNoDataRoot = errors.New("no data root: pass --data-root or set TEAM_CHAT_ROOT")

// DataRoot resolves the directory holding teams/. explicit (normally the
// --data-root flag) wins; then the TEAM_CHAT_ROOT and REPO_ROOT overrides;
// otherwise ErrNoDataRoot.
func DataRoot(explicit string) (string, error) {
	if explicit != "" {
		return ExpandHome(explicit), nil
	}
	for _, env := range []string{EnvRoot, EnvRepoRoot} {
		if v := os.Getenv(env); v != "" {
			return ExpandHome(v), nil
		}
	}
	return "", ErrNoDataRoot
}

// ExpandHome expands a leading ~/ to the user's home directory. The path
// comes back unchanged when it has no ~/ prefix or the home directory is
// unknown.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
