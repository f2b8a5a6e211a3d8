package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
)

// Run-state file names under the state directory. Each holds one integer
// (epoch seconds or a count) plus a newline, so cron health checks can read
// them with plain shell tools.
const (
	lastRunFile   = "unread_notifier.last_run"
	failCountFile = "unread_notifier.fail_count"
	lastOKFile    = "unread_notifier.last_ok"
)

// RunState is the result of recording one sweep in the state files.
type RunState struct {
	Error     string `json:"error,omitempty"`
	FailCount int    `json:"fail_count"`
	LastOK    int64  `json:"last_ok,omitempty"`
	LastRun   int64  `json:"last_run"`
	OK        bool   `json:"ok"`
}

func readIntFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return n
}

// UpdateRunState records a sweep outcome in stateDir. last_run always moves
// forward; fail_count resets to zero on success and increments otherwise;
// last_ok only advances on success. errMsg is echoed back in the result for
// the caller's summary and is not written to disk.
func UpdateRunState(stateDir string, ok bool, errMsg string) (*RunState, error) {
	now := time.Now().Unix()

	failCount := 0
	if !ok {
		failCount = readIntFile(filepath.Join(stateDir, failCountFile)) + 1
	}

	if err := fsio.WriteTextAtomic(filepath.Join(stateDir, lastRunFile), fmt.Sprintf("%d\n", now)); err != nil {
		return nil, err
	}
	if err := fsio.WriteTextAtomic(filepath.Join(stateDir, failCountFile), fmt.Sprintf("%d\n", failCount)); err != nil {
		return nil, err
	}

	rs := &RunState{Error: errMsg, FailCount: failCount, LastRun: now, OK: ok}
	if ok {
		rs.LastOK = now
		if err := fsio.WriteTextAtomic(filepath.Join(stateDir, lastOKFile), fmt.Sprintf("%d\n", now)); err != nil {
			return nil, err
		}
	}
	return rs, nil
}
