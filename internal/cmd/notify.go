package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/notify"
)

var (
	notifyStateDir string
	notifyDryRun   bool
)

var notifyCmd = &cobra.Command{
	Use:     "notify",
	GroupID: GroupDiag,
	Short:   "Nudge agents holding unread mail (cron entry point)",
	Long: `Sweep every team under the data root and nudge members with unread
messages. A member whose unread count grew since the last sweep is nudged
immediately; a count that merely persists waits out the per-member cooldown.

Tuning comes from notify.toml under the data root (interval, cooldown,
team allowlist). Nudges land on the recipient's queue and are delivered
cooperatively when the agent next drains it.

The sweep summary prints to stdout as a single JSON object so cron can
capture it; run health lands in --state-dir as unread_notifier.last_run,
.last_ok, and .fail_count for external health checks.

Example crontab entry:
  */5 * * * * tc --data-root /srv/chat notify --state-dir /srv/chat/state`,
	Args: cobra.NoArgs,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyStateDir, "state-dir", "", "Directory for run-state files (default <data-root>/state)")
	notifyCmd.Flags().BoolVar(&notifyDryRun, "dry-run", false, "Report who would be nudged without sending")
	rootCmd.AddCommand(notifyCmd)
}

// dryRunSender records decisions to stderr instead of delivering.
type dryRunSender struct{}

func (dryRunSender) Send(team, agent, message string) error {
	fmt.Fprintf(os.Stderr, "dry-run: would nudge %s/%s\n", team, agent)
	return nil
}

func runNotify(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	cfg, err := notify.LoadConfig(svc.Root())
	if err != nil {
		return err
	}

	var sender notify.Sender
	if notifyDryRun {
		sender = dryRunSender{}
	}
	sum := notify.New(svc, cfg, sender).Run()

	if !notifyDryRun {
		stateDir := notifyStateDir
		if stateDir == "" {
			stateDir = svc.Root() + "/state"
		}
		errMsg := ""
		if len(sum.Errors) > 0 {
			errMsg = sum.Errors[0]
		}
		if _, err := notify.UpdateRunState(stateDir, sum.OK, errMsg); err != nil {
			return fmt.Errorf("recording run state: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(sum); err != nil {
		return err
	}
	if !sum.OK {
		exitCode = 1
	}
	return nil
}
