package doctor

import (
	"fmt"

	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
)

// AckIndexCheck verifies ack bookkeeping: every ack index entry must point
// at a known message, and the event log must hold a message_acked event for
// it. An ack without a message is corruption; an ack without an event only
// loses audit detail, since rehydrate rebuilds acks from those events.
type AckIndexCheck struct {
	BaseCheck
}

// NewAckIndexCheck creates a new ack index consistency check.
func NewAckIndexCheck() *AckIndexCheck {
	return &AckIndexCheck{
		BaseCheck: BaseCheck{
			CheckName:        "ack_index_consistency",
			CheckDescription: "Check every ack references a known message and a message_acked event",
		},
	}
}

// Run cross-references the ack index with the message index and the events.
func (c *AckIndexCheck) Run(ctx *CheckContext) *CheckResult {
	st := ctx.Store
	acks, err := st.AckedSet()
	if err != nil {
		return c.failed(err)
	}
	messageIndex, err := st.MessageIndex()
	if err != nil {
		return c.failed(err)
	}

	ackedEvents := map[string]bool{}
	files, err := st.EventFiles()
	if err != nil {
		return c.failed(err)
	}
	for _, file := range files {
		err := st.ScanEventFile(file, func(e protocol.Event) bool {
			if e.Kind() == string(protocol.KindMessageAcked) {
				if id, _ := e.Payload()["message_id"].(string); id != "" {
					ackedEvents[id] = true
				}
			}
			return true
		})
		if err != nil {
			return c.failed(err)
		}
	}

	var missingMessages, missingEvents int
	for messageID := range acks {
		if _, ok := messageIndex[messageID]; !ok {
			missingMessages++
		}
		if !ackedEvents[messageID] {
			missingEvents++
		}
	}

	details := map[string]any{
		"acks_checked":     len(acks),
		"missing_events":   missingEvents,
		"missing_messages": missingMessages,
	}
	switch {
	case missingMessages > 0:
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusUnhealthy,
			Summary: fmt.Sprintf("%d acks reference unknown messages", missingMessages),
			Details: details,
		}
	case missingEvents > 0:
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarn,
			Summary: fmt.Sprintf("%d acks have no message_acked event", missingEvents),
			Details: details,
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusHealthy,
		Summary: fmt.Sprintf("%d acks fully accounted for", len(acks)),
		Details: details,
	}
}
