package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/chat"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var (
	sendMessageID   string
	sendFrom        string
	sendTo          string
	sendType        string
	sendTaskID      string
	sendTraceID     string
	sendPriority    string
	sendPayloadJSON string
	sendPayloadFile string
	sendRequireAck  bool
	sendAckTimeout  int
	sendMaxRetries  int
	sendCooldown    int
)

var sendCmd = &cobra.Command{
	Use:     "send <team>",
	GroupID: GroupMessaging,
	Short:   "Send a message to an agent's inbox",
	Long: `Append one message to the recipient's inbox.

Sends are idempotent by message id: re-sending an id that is already stored
is a no-op reported as status "duplicate". With --cooldown-seconds, repeat
sends to the same (recipient, task, type) inside the window come back
"suppressed" without touching the inbox.

With --require-ack the command waits for the recipient to ack, retrying per
the team's ack policy (config.json) before writing a dead-letter record.

Examples:
  tc send demo --from lead --to dev --type handoff --payload-json '{"subject":"API review"}'
  tc send demo --from dev --to lead --type idle_notification --cooldown-seconds 300
  tc send demo --from lead --to qa --type decision_required --require-ack --ack-timeout-seconds 60`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendMessageID, "message-id", "", "Explicit message id (generated when omitted)")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "Sender agent id")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "Recipient agent id")
	sendCmd.Flags().StringVar(&sendType, "type", "", "Message type: "+strings.Join(protocol.MessageTypes(), ", "))
	sendCmd.Flags().StringVar(&sendTaskID, "task-id", "", "Task this message refers to")
	sendCmd.Flags().StringVar(&sendTraceID, "trace-id", "", "Trace correlator")
	sendCmd.Flags().StringVar(&sendPriority, "priority", "", "Priority: low, normal, high, critical")
	sendCmd.Flags().StringVar(&sendPayloadJSON, "payload-json", "", "Payload as a JSON object")
	sendCmd.Flags().StringVar(&sendPayloadFile, "payload-file", "", "Read the payload object from a JSON file")
	sendCmd.Flags().BoolVar(&sendRequireAck, "require-ack", false, "Wait for the recipient to ack")
	sendCmd.Flags().IntVar(&sendAckTimeout, "ack-timeout-seconds", 0, "Per-attempt ack timeout (0 = team policy)")
	sendCmd.Flags().IntVar(&sendMaxRetries, "max-retries", -1, "Retries after the first attempt (-1 = team policy)")
	sendCmd.Flags().IntVar(&sendCooldown, "cooldown-seconds", 0, "Suppress repeat sends inside this window")
	_ = sendCmd.MarkFlagRequired("from")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	payload, err := parsePayload(sendPayloadJSON, sendPayloadFile)
	if err != nil {
		return err
	}

	m := protocol.Message{
		"from":    sendFrom,
		"payload": payload,
		"to":      sendTo,
		"type":    sendType,
	}
	if sendMessageID != "" {
		m["id"] = sendMessageID
	}
	if sendTaskID != "" {
		m["task_id"] = sendTaskID
	}
	if sendTraceID != "" {
		m["trace_id"] = sendTraceID
	}
	if sendPriority != "" {
		m["priority"] = sendPriority
	}

	opts := chat.SendOptions{
		CooldownSeconds: sendCooldown,
		RequireAck:      sendRequireAck,
	}
	if cmd.Flags().Changed("ack-timeout-seconds") {
		opts.AckTimeoutSeconds = &sendAckTimeout
	}
	if sendMaxRetries >= 0 {
		opts.MaxRetries = &sendMaxRetries
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	res, err := svc.Send(args[0], m, opts)
	if err != nil {
		return err
	}
	printSendResult(res)
	return nil
}

// parsePayload decodes the payload object from --payload-json or
// --payload-file; both absent means an empty payload.
func parsePayload(inline, file string) (map[string]any, error) {
	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("payload file: %w", err)
		}
		data = b
	default:
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return payload, nil
}

// printSendResult renders one SendResult for humans or as JSON, shared by
// send and the task commands.
func printSendResult(res *chat.SendResult) {
	if rootJSON {
		_ = printJSON(res)
		return
	}
	m := res.Message
	switch res.Status {
	case chat.StatusSent:
		fmt.Printf("%s sent %s [%s] %s -> %s\n", style.SuccessPrefix, m.ID(), m.Type(), m.From(), m.To())
	case chat.StatusDuplicate:
		fmt.Printf("%s duplicate %s already delivered\n", style.WarningPrefix, m.ID())
	case chat.StatusSuppressed:
		fmt.Printf("%s suppressed by cooldown, %ds remaining\n", style.WarningPrefix, res.CooldownRemainingSeconds)
	case chat.StatusAcked:
		fmt.Printf("%s acked %s by %s on attempt %d\n", style.SuccessPrefix, m.ID(), res.Ack.Agent, res.Attempt)
	case chat.StatusDeadLetter:
		fmt.Printf("%s dead-lettered %s after %d attempt(s) (%s)\n", style.ErrorPrefix, m.ID(), res.DeadLetter.Attempts(), res.DeadLetter.Reason())
	default:
		fmt.Printf("status: %s\n", res.Status)
	}
}
