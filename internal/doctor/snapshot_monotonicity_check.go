package doctor

import (
	"fmt"

	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// SnapshotMonotonicityCheck verifies task snapshot timestamps run forward:
// updated_at must not precede created_at. A violation usually means a replay
// applied messages out of order or a snapshot was edited by hand; the
// snapshots are derived, so rehydrate repairs them.
type SnapshotMonotonicityCheck struct {
	BaseCheck
}

// NewSnapshotMonotonicityCheck creates a new snapshot monotonicity check.
func NewSnapshotMonotonicityCheck() *SnapshotMonotonicityCheck {
	return &SnapshotMonotonicityCheck{
		BaseCheck: BaseCheck{
			CheckName:        "snapshot_monotonicity",
			CheckDescription: "Check task snapshots for updated_at running behind created_at",
		},
	}
}

// Run compares the two stamps on every snapshot that carries both.
func (c *SnapshotMonotonicityCheck) Run(ctx *CheckContext) *CheckResult {
	tasks, err := ctx.Store.ListTaskSnapshots()
	if err != nil {
		return c.failed(err)
	}

	checked := 0
	var violations []string
	for _, task := range tasks {
		created, errC := protocol.ParseTime(task.CreatedAt())
		updated, errU := protocol.ParseTime(task.UpdatedAt())
		if errC != nil || errU != nil {
			continue
		}
		checked++
		if updated.Before(created) {
			violations = append(violations, task.TaskID())
		}
	}

	details := map[string]any{
		"tasks":         len(tasks),
		"tasks_checked": checked,
		"violations":    len(violations),
	}
	if len(violations) > 0 {
		details["task_ids"] = violations
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarn,
			Summary: fmt.Sprintf("%d snapshots updated before they were created", len(violations)),
			Details: details,
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusHealthy,
		Summary: "snapshot timestamps run forward",
		Details: details,
	}
}
