package chat

import (
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/store"
)

type ackPolicy struct {
	timeoutSeconds int
	maxRetries     int
}

// builtinAckPolicy returns the policy table every team starts from. Types
// without their own row use the "default" row.
func builtinAckPolicy() map[string]ackPolicy {
	return map[string]ackPolicy{
		"default":                             {timeoutSeconds: 60, maxRetries: 2},
		string(protocol.TypeDecisionRequired): {timeoutSeconds: 180, maxRetries: 3},
		string(protocol.TypeShutdownRequest):  {timeoutSeconds: 180, maxRetries: 2},
	}
}

// resolveAckPolicy computes the effective ack rule for one send: config.json
// rules overlay the built-in table field by field ("default" first, so a
// config row for a new type bases on the updated default), the per-type row
// wins over the default row, and non-nil call-site values win over
// everything.
func resolveAckPolicy(cfg *store.TeamConfig, msgType string, timeoutSeconds, maxRetries *int) ackPolicy {
	rules := builtinAckPolicy()
	if cfg != nil {
		if rule, ok := cfg.AckPolicy["default"]; ok {
			row := rules["default"]
			applyAckRule(&row, rule)
			rules["default"] = row
		}
		for name, rule := range cfg.AckPolicy {
			if name == "default" {
				continue
			}
			row, ok := rules[name]
			if !ok {
				row = rules["default"]
			}
			applyAckRule(&row, rule)
			rules[name] = row
		}
	}

	p, ok := rules[msgType]
	if !ok {
		p = rules["default"]
	}
	if timeoutSeconds != nil {
		p.timeoutSeconds = *timeoutSeconds
	}
	if maxRetries != nil {
		p.maxRetries = *maxRetries
	}
	if p.timeoutSeconds < 1 {
		p.timeoutSeconds = 1
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	return p
}

func applyAckRule(p *ackPolicy, rule store.AckRule) {
	if rule.AckTimeoutSeconds != nil {
		p.timeoutSeconds = *rule.AckTimeoutSeconds
	}
	if rule.MaxRetries != nil {
		p.maxRetries = *rule.MaxRetries
	}
}
