package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var rehydrateCmd = &cobra.Command{
	Use:     "rehydrate <team>",
	GroupID: GroupDiag,
	Short:   "Rebuild indexes and snapshots from the logs",
	Long: `Rebuild all derived state from the authoritative logs: the message
index from inbox lines, the event index from the dated event files, the ack
index from message_acked events, and every task snapshot from a replay of
its messages.

Safe to run at any time; inbox and event logs are never modified. Run it
after doctor reports index damage or after restoring files from backup.`,
	Args: cobra.ExactArgs(1),
	RunE: runRehydrate,
}

func init() {
	rootCmd.AddCommand(rehydrateCmd)
}

func runRehydrate(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.Rehydrate(args[0])
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(res)
	}
	fmt.Printf("%s rehydrated %s: %d message(s), %d event(s), %d ack(s), %d task(s)\n",
		style.SuccessPrefix, style.Bold.Render(res.Team),
		res.MessageCount, res.EventCount, res.AckCount, res.TaskCount)
	return nil
}
