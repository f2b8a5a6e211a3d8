package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xcawolfe-amzn/teamchat/internal/chat"
	"github.com/xcawolfe-amzn/teamchat/internal/protocol"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
	"github.com/xcawolfe-amzn/teamchat/internal/workspace"
)

// newService resolves the data root and builds the messaging service every
// team command runs against.
func newService() (*chat.Service, error) {
	root, err := workspace.DataRoot(rootDataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving data root: %w", err)
	}
	return chat.NewService(root), nil
}

// printJSON writes v to stdout as indented JSON. Map keys come out sorted,
// matching the on-disk encoding.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// localStamp renders an ISO-8601 UTC timestamp in local time for human
// output; the raw string comes back when it does not parse.
func localStamp(iso string) string {
	t, err := protocol.ParseTime(iso)
	if err != nil {
		return iso
	}
	return t.Local().Format("2006-01-02 15:04")
}

// agoStamp renders how long ago an ISO-8601 UTC timestamp was.
func agoStamp(iso string) string {
	t, err := protocol.ParseTime(iso)
	if err != nil {
		return iso
	}
	return style.Ago(t, time.Now().UTC())
}

// firstLine truncates s at the first newline so log payloads cannot wreck
// table rows.
func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
