package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var (
	readAgent  string
	readUnread bool
	readLimit  int
	readCursor string
)

var readCmd = &cobra.Command{
	Use:     "read <team>",
	GroupID: GroupMessaging,
	Short:   "Read an agent's inbox",
	Long: `Page through an agent's inbox, newest page first, messages within a
page oldest first. Pass the printed next_cursor back via --cursor to fetch
the next (older) page.

Examples:
  tc read demo --agent dev --unread
  tc read demo --agent dev --limit 20 --cursor msg_abc123def456`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVar(&readAgent, "agent", "", "Agent whose inbox to read")
	readCmd.Flags().BoolVar(&readUnread, "unread", false, "Only messages not yet acked")
	readCmd.Flags().IntVar(&readLimit, "limit", 50, "Page size (0 = everything)")
	readCmd.Flags().StringVar(&readCursor, "cursor", "", "Read messages older than this message id")
	_ = readCmd.MarkFlagRequired("agent")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.ReadInbox(args[0], readAgent, readUnread, readLimit, readCursor)
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(res)
	}

	scope := "messages"
	if readUnread {
		scope = "unread messages"
	}
	fmt.Printf("%s %d %s for %s\n", style.SuccessPrefix, res.Count, scope, style.Bold.Render(res.Agent))
	for _, m := range res.Messages {
		subject, _ := m.Payload()["subject"].(string)
		fmt.Printf("  %s %s [%s] from %s %s", style.ArrowPrefix, m.ID(), m.Type(), m.From(), style.Dim.Render(agoStamp(m.CreatedAt())))
		if subject != "" {
			fmt.Printf("  %s", firstLine(subject))
		}
		fmt.Println()
	}
	if res.NextCursor != nil {
		fmt.Printf("  next_cursor: %s\n", *res.NextCursor)
	}
	return nil
}
