package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var dlqCmd = &cobra.Command{
	Use:     "dlq <team>",
	GroupID: GroupDiag,
	Short:   "List dead-lettered deliveries",
	Long: `List the team's failed-delivery records: sends that required an ack
and exhausted their retry budget. Entries are read-only; the original
message stays in the recipient's inbox and can still be acked.`,
	Args: cobra.ExactArgs(1),
	RunE: runDLQ,
}

func init() {
	rootCmd.AddCommand(dlqCmd)
}

func runDLQ(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	entries, err := svc.DeadLetters(args[0])
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Printf("%s no dead letters\n", style.SuccessPrefix)
		return nil
	}

	fmt.Printf("%s %d dead letter(s)\n", style.WarningPrefix, len(entries))
	table := style.NewTable(
		style.Column{Name: "ID", Width: 18},
		style.Column{Name: "MESSAGE", Width: 18},
		style.Column{Name: "REASON", Width: 12},
		style.Column{Name: "ATTEMPTS", Width: 8, Align: style.AlignRight},
		style.Column{Name: "WHEN", Width: 12, Align: style.AlignRight, Style: style.Dim},
	)
	for _, d := range entries {
		table.AddRow(d.ID(), d.MessageID(), d.Reason(), fmt.Sprintf("%d", d.Attempts()), agoStamp(d.CreatedAt()))
	}
	fmt.Print(table.Render())
	return nil
}
