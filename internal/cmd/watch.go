package cmd

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xcawolfe-amzn/teamchat/internal/tui/feed"
)

var (
	watchLimit  int
	watchPlain  bool
	watchFollow bool
)

var watchCmd = &cobra.Command{
	Use:     "watch <team>",
	GroupID: GroupDiag,
	Short:   "Watch a team's event log live",
	Long: `Tail a team's event history in a scrollable terminal UI. New events
stream in as other processes append them; j/k scroll, g/G jump to the ends,
? toggles help, q quits.

When stdout is not a terminal (or with --plain) events print as plain
lines instead, one per event, and --follow keeps the stream open.

Examples:
  tc watch demo
  tc watch demo --plain --follow | grep dead_letter`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchLimit, "limit", 200, "Events of history to load initially")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Plain line output instead of the TUI")
	watchCmd.Flags().BoolVarP(&watchFollow, "follow", "f", false, "With --plain, keep streaming new events")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	st, err := svc.Store(args[0])
	if err != nil {
		return err
	}

	if watchPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return feed.PrintEvents(st, os.Stdout, feed.PrintOptions{
			Follow: watchFollow,
			Limit:  watchLimit,
		})
	}

	m := feed.NewModel(st, watchLimit)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
