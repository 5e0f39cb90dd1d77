package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/EmOne/openremote/cmd/orctl/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget stored tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		gc := config.MustFromContext(cmd.Context())

		m, err := gc.Provider.Manager(cmd.Context())
		if m == nil {
			return err
		}
		if err := m.Logout(cmd.Context(), ""); err != nil {
			return err
		}
		pterm.Success.Println("Logged out successfully")
		return nil
	},
}
