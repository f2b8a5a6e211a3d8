// tc is the team-chat CLI: a file-backed, multi-writer mailbox for
// cooperating agents.
package main

import (
	"os"

	"github.com/xcawolfe-amzn/teamchat/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
