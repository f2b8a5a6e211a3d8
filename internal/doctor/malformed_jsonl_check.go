package doctor

import (
	"fmt"
	"path/filepath"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
)

// MalformedJSONLCheck scans every append-only log for lines that do not
// parse as JSON objects. Readers skip such lines, so damage is silent until
// someone looks; any damaged line means a writer died mid-append or a file
// was edited by hand.
type MalformedJSONLCheck struct {
	BaseCheck
}

// NewMalformedJSONLCheck creates a new malformed-JSONL check.
func NewMalformedJSONLCheck() *MalformedJSONLCheck {
	return &MalformedJSONLCheck{
		BaseCheck: BaseCheck{
			CheckName:        "malformed_jsonl",
			CheckDescription: "Check inbox, event, and dead-letter logs for unparseable lines",
		},
	}
}

// Run scans with its own malformed log so counts are exact for this run,
// independent of whatever the store's readers have already seen.
func (c *MalformedJSONLCheck) Run(ctx *CheckContext) *CheckResult {
	st := ctx.Store
	mal := fsio.NewMalformedLog()

	var paths []string
	agents, err := st.Agents()
	if err != nil {
		return c.failed(err)
	}
	for _, agent := range agents {
		paths = append(paths, filepath.Join(st.Dir(), "inboxes", agent+".jsonl"))
	}
	files, err := st.EventFiles()
	if err != nil {
		return c.failed(err)
	}
	for _, f := range files {
		paths = append(paths, filepath.Join(st.Dir(), "events", f))
	}
	dead, err := filepath.Glob(filepath.Join(st.Dir(), "dead-letter", "*.jsonl"))
	if err != nil {
		return c.failed(err)
	}
	paths = append(paths, dead...)

	scanned := 0
	for _, path := range paths {
		scanned++
		if err := fsio.ScanRecords(path, mal, func(map[string]any) bool { return true }); err != nil {
			return c.failed(err)
		}
	}

	total := mal.TotalCount()
	details := map[string]any{
		"files_scanned": scanned,
		"total":         total,
	}
	if total > 0 {
		details["files"] = mal.Snapshot()
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusUnhealthy,
			Summary: fmt.Sprintf("%d malformed lines across the logs", total),
			Details: details,
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusHealthy,
		Summary: "every log line parses",
		Details: details,
	}
}
