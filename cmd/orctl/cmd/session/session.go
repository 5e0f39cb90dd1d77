package session

import (
	"github.com/spf13/cobra"
)

// SessionCmd is the parent command for session inspection
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and run a console session",
}

func init() {
	SessionCmd.AddCommand(statusCmd)
	SessionCmd.AddCommand(watchCmd)
}
