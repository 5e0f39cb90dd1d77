package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd is the parent command for auth operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Commands for logging in to and out of the manager and showing the current user.`,
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(statusCmd)
}
