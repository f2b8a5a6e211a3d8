package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/chat"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: GroupTasks,
	Short:   "Assign and update tasks through the mailbox",
}

var (
	taskFrom     string
	taskTo       string
	taskID       string
	taskTraceID  string
	taskPriority string
	taskCooldown int

	assignSubject string
	assignDetails string

	updateStatus    string
	updateProgress  string
	updateETA       string
	updateNote      string
	updateBlocked   bool
	updateUnblocked bool
)

var taskAssignCmd = &cobra.Command{
	Use:   "assign <team>",
	Short: "Assign a task to an agent",
	Long: `Send a task_assign message and seed the task's snapshot.

The recipient becomes the task owner and the snapshot status is set to
"assigned".

Example:
  tc task assign demo --from lead --to dev --task-id task_1 --subject "Build endpoint"`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskAssign,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <team>",
	Short: "Report progress on a task",
	Long: `Send a task_update message. Only the flags you pass are overlaid
onto the task snapshot; omitted fields keep their current values.

Examples:
  tc task update demo --from dev --to lead --task-id task_1 --status in_progress --progress 60%
  tc task update demo --from dev --to lead --task-id task_1 --blocked --note "waiting on schema"`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskUpdate,
}

var taskListCmd = &cobra.Command{
	Use:   "list <team>",
	Short: "List task snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskList,
}

func init() {
	for _, c := range []*cobra.Command{taskAssignCmd, taskUpdateCmd} {
		c.Flags().StringVar(&taskFrom, "from", "", "Sender agent id")
		c.Flags().StringVar(&taskTo, "to", "", "Recipient agent id")
		c.Flags().StringVar(&taskID, "task-id", "", "Task id")
		c.Flags().StringVar(&taskTraceID, "trace-id", "", "Trace correlator")
		c.Flags().StringVar(&taskPriority, "priority", "", "Priority: low, normal, high, critical")
		c.Flags().IntVar(&taskCooldown, "cooldown-seconds", 0, "Suppress repeat sends inside this window")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
		_ = c.MarkFlagRequired("task-id")
	}

	taskAssignCmd.Flags().StringVar(&assignSubject, "subject", "", "One-line task summary")
	taskAssignCmd.Flags().StringVar(&assignDetails, "details", "", "Longer task description")
	_ = taskAssignCmd.MarkFlagRequired("subject")

	taskUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "New task status")
	taskUpdateCmd.Flags().StringVar(&updateProgress, "progress", "", "Progress note (free-form)")
	taskUpdateCmd.Flags().StringVar(&updateETA, "eta", "", "Estimated completion")
	taskUpdateCmd.Flags().StringVar(&updateNote, "note", "", "Free-form note")
	taskUpdateCmd.Flags().BoolVar(&updateBlocked, "blocked", false, "Mark the task blocked")
	taskUpdateCmd.Flags().BoolVar(&updateUnblocked, "unblocked", false, "Clear the blocked flag")
	taskUpdateCmd.MarkFlagsMutuallyExclusive("blocked", "unblocked")

	taskCmd.AddCommand(taskAssignCmd, taskUpdateCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskAssign(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"details": assignDetails,
		"subject": assignSubject,
	}
	return sendTaskMessage(args[0], string(protocol.TypeTaskAssign), payload)
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	payload := map[string]any{}
	if updateStatus != "" {
		payload["status"] = updateStatus
	}
	if updateProgress != "" {
		payload["progress"] = updateProgress
	}
	if updateETA != "" {
		payload["eta"] = updateETA
	}
	if updateNote != "" {
		payload["note"] = updateNote
	}
	if updateBlocked {
		payload["blocked"] = true
	}
	if updateUnblocked {
		payload["blocked"] = false
	}
	return sendTaskMessage(args[0], string(protocol.TypeTaskUpdate), payload)
}

func sendTaskMessage(team, msgType string, payload map[string]any) error {
	m := protocol.Message{
		"from":    taskFrom,
		"payload": payload,
		"task_id": taskID,
		"to":      taskTo,
		"type":    msgType,
	}
	if taskTraceID != "" {
		m["trace_id"] = taskTraceID
	}
	if taskPriority != "" {
		m["priority"] = taskPriority
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.Send(team, m, chat.SendOptions{CooldownSeconds: taskCooldown})
	if err != nil {
		return err
	}
	printSendResult(res)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	tasks, err := svc.Tasks(args[0])
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}

	table := style.NewTable(
		style.Column{Name: "TASK", Width: 20},
		style.Column{Name: "OWNER", Width: 12},
		style.Column{Name: "STATUS", Width: 12},
		style.Column{Name: "UPDATED", Width: 12, Align: style.AlignRight, Style: style.Dim},
	)
	for _, t := range tasks {
		status := t.Status()
		if t.Blocked() {
			status = style.Error.Render("blocked")
		}
		table.AddRow(t.TaskID(), t.Owner(), status, agoStamp(t.UpdatedAt()))
	}
	fmt.Print(table.Render())
	return nil
}
