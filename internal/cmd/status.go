package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/chat"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var statusStaleMinutes int

var statusCmd = &cobra.Command{
	Use:     "status <team>",
	GroupID: GroupDiag,
	Short:   "Summarize team health",
	Long: `Show the team roster with unread counts, blocked and stale tasks,
unacked messages past the staleness horizon, and any malformed log lines
readers have skipped.

Example:
  tc status demo --stale-minutes 30`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusStaleMinutes, "stale-minutes", chat.DefaultStaleMinutes, "Age after which tasks and unacked messages count as stale")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.Status(args[0], statusStaleMinutes)
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(res)
	}

	fmt.Printf("%s team %s: %d member(s), %d task(s)\n", style.SuccessPrefix, style.Bold.Render(res.Team), len(res.Members), res.TaskCount)

	if len(res.Members) > 0 {
		table := style.NewTable(
			style.Column{Name: "MEMBER", Width: 20},
			style.Column{Name: "UNREAD", Width: 6, Align: style.AlignRight},
		)
		for _, m := range res.Members {
			unread := fmt.Sprintf("%d", res.UnreadCounts[m])
			if res.UnreadCounts[m] == 0 {
				unread = style.Dim.Render("0")
			}
			table.AddRow(m, unread)
		}
		fmt.Print(table.Render())
	}

	if len(res.BlockedTasks) > 0 {
		fmt.Printf("%s %d blocked task(s)\n", style.ErrorPrefix, len(res.BlockedTasks))
		for _, t := range res.BlockedTasks {
			fmt.Printf("  %s %s owner=%s status=%s\n", style.ArrowPrefix, t.TaskID(), t.Owner(), t.Status())
		}
	}
	if len(res.StaleTasks) > 0 {
		fmt.Printf("%s %d stale task(s)\n", style.WarningPrefix, len(res.StaleTasks))
		for _, t := range res.StaleTasks {
			fmt.Printf("  %s %s owner=%s last update %s (%s)\n", style.ArrowPrefix, t.TaskID(), t.Owner(), localStamp(t.UpdatedAt()), agoStamp(t.UpdatedAt()))
		}
	}
	if len(res.StaleMessages) > 0 {
		fmt.Printf("%s %d stale unacked message(s)\n", style.WarningPrefix, len(res.StaleMessages))
		for _, sm := range res.StaleMessages {
			m := sm.Message
			fmt.Printf("  %s %s to=%s type=%s sent %s (%s)\n", style.ArrowPrefix, m.ID(), sm.Agent, m.Type(), localStamp(m.CreatedAt()), agoStamp(m.CreatedAt()))
		}
	}

	if len(res.MalformedJSONL) > 0 {
		fmt.Printf("%s malformed lines skipped while reading:\n", style.WarningPrefix)
		paths := make([]string, 0, len(res.MalformedJSONL))
		for p := range res.MalformedJSONL {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			e := res.MalformedJSONL[p]
			fmt.Printf("  %s %s: %d line(s), last at line %d (%s)\n", style.ArrowPrefix, p, e.Count, e.LastLineNumber, e.LastReason)
		}
	}
	return nil
}
