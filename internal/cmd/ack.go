package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/chat"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var (
	ackAgent     string
	ackMessageID string
)

var ackCmd = &cobra.Command{
	Use:     "ack <team>",
	GroupID: GroupMessaging,
	Short:   "Acknowledge a message",
	Long: `Record that an agent has handled a message. Acks are idempotent: a
repeat ack reports "already_acked" and changes nothing.

Only the message's recipient may ack it; an ack by anyone else is rejected
(and recorded as an ack_rejected event) with exit code 1.

Example:
  tc ack demo --agent dev --message-id msg_abc123def456`,
	Args: cobra.ExactArgs(1),
	RunE: runAck,
}

func init() {
	ackCmd.Flags().StringVar(&ackAgent, "agent", "", "Acknowledging agent")
	ackCmd.Flags().StringVar(&ackMessageID, "message-id", "", "Message to acknowledge")
	_ = ackCmd.MarkFlagRequired("agent")
	_ = ackCmd.MarkFlagRequired("message-id")
	rootCmd.AddCommand(ackCmd)
}

func runAck(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.Ack(args[0], ackAgent, ackMessageID)
	if err != nil {
		return err
	}
	if rootJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		switch res.Status {
		case chat.StatusAcked:
			fmt.Printf("%s acked %s\n", style.SuccessPrefix, ackMessageID)
		case chat.StatusAlreadyAcked:
			fmt.Printf("%s %s was already acked\n", style.WarningPrefix, ackMessageID)
		case chat.StatusNotFound:
			fmt.Printf("%s no message %s in this team\n", style.ErrorPrefix, ackMessageID)
		case chat.StatusWrongRecipient:
			fmt.Printf("%s %s is addressed to %s, not %s\n", style.ErrorPrefix, ackMessageID, res.Expected, ackAgent)
		}
	}
	if res.Status != chat.StatusAcked && res.Status != chat.StatusAlreadyAcked {
		exitCode = 1
	}
	return nil
}
