// Package cmd implements the tc command-line interface over the messaging
// service. Commands print styled text for humans and switch to pretty JSON
// with --json; exit codes are 0 on success, 1 on caller error, and 2 when
// doctor finds the store unhealthy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/log"
	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

// Command groups for help output.
const (
	GroupMessaging = "messaging"
	GroupTasks     = "tasks"
	GroupDiag      = "diag"
)

var (
	rootDataRoot string
	rootJSON     bool
)

// exitCode is the process exit status. Commands that succeed but want a
// nonzero exit (doctor on an unhealthy store, notify on a failed sweep) set
// it instead of returning an error.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "tc",
	Short: "File-backed team messaging for cooperating agents",
	Long: `tc is a durable, multi-writer mailbox shared through the filesystem.

Each team lives under <data-root>/teams/<team>/ as append-only inbox and
event logs plus derived indexes. There is no server: every tc invocation
(and any other process using the same data root) reads and writes the files
directly, serialized by advisory locks.

The data root resolves from --data-root, then $TEAM_CHAT_ROOT, then
$REPO_ROOT; with none of those set tc refuses to run rather than guess
where team state lives.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(rootJSON)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDataRoot, "data-root", "", "Directory holding teams/ (overrides $TEAM_CHAT_ROOT)")
	rootCmd.PersistentFlags().BoolVar(&rootJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupMessaging, Title: "Messaging Commands:"},
		&cobra.Group{ID: GroupTasks, Title: "Task Commands:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostic Commands:"},
	)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return exitCode
}
