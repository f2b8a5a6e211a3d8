package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var (
	traceID     string
	traceLimit  int
	traceCursor string
)

var traceCmd = &cobra.Command{
	Use:     "trace <team>",
	GroupID: GroupDiag,
	Short:   "Show the events belonging to one trace",
	Long: `Collect every event carrying the given trace id, whether on the
event itself, in its payload, or on a message embedded in the payload.

Without --limit the full trace prints in chronological order. With a limit
the newest page prints first; feed next_cursor back via --cursor for older
pages.

Examples:
  tc trace demo --trace-id trace_1
  tc trace demo --trace-id trace_1 --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().StringVar(&traceID, "trace-id", "", "Trace id to collect")
	traceCmd.Flags().IntVar(&traceLimit, "limit", 0, "Page size (0 = no limit)")
	traceCmd.Flags().StringVar(&traceCursor, "cursor", "", "Read events older than this event id")
	_ = traceCmd.MarkFlagRequired("trace-id")
	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.Trace(args[0], traceID, traceLimit, traceCursor)
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(res)
	}

	fmt.Printf("%s %d event(s) for trace %s\n", style.SuccessPrefix, res.Count, style.Bold.Render(res.TraceID))
	for _, e := range res.Events {
		task := e.TaskID()
		if task == "" {
			task = "-"
		}
		fmt.Printf("  %s %s %s id=%s task=%s\n", style.ArrowPrefix, style.Dim.Render(e.CreatedAt()), e.Kind(), e.ID(), task)
	}
	if res.NextCursor != nil {
		fmt.Printf("  next_cursor: %s\n", *res.NextCursor)
	}
	return nil
}
