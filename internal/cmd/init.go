package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/teamchat/internal/style"
)

var (
	initMembers string
	initName    string
)

var initCmd = &cobra.Command{
	Use:     "init <team>",
	GroupID: GroupMessaging,
	Short:   "Create a team and its on-disk layout",
	Long: `Create the directory layout for a team and write its team.json.

Re-running init on an existing team merges the member list instead of
failing, so provisioning scripts can run it unconditionally.

Examples:
  tc init demo --members lead,dev,qa
  tc init demo --members ops --name "Demo Team"`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initMembers, "members", "", "Comma-separated member ids")
	initCmd.Flags().StringVar(&initName, "name", "", "Display name (defaults to the team id)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	var members []string
	for _, m := range strings.Split(initMembers, ",") {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}

	res, err := svc.InitTeam(args[0], initName, members)
	if err != nil {
		return err
	}
	if rootJSON {
		return printJSON(res)
	}

	verb := "updated"
	if res.Created {
		verb = "created"
	}
	fmt.Printf("%s team %s %s (%d member(s))\n", style.SuccessPrefix, style.Bold.Render(res.Team), verb, len(res.Meta.Members))
	for _, m := range res.Meta.Members {
		fmt.Printf("  %s %s\n", style.ArrowPrefix, m)
	}
	return nil
}
