package auth

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/EmOne/openremote/cmd/orctl/internal/config"
	"github.com/EmOne/openremote/pkg/identity"
)

var (
	username string
	password string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the manager",
	Long: `Boots a session and logs in with the configured auth mode.

Keycloak sessions use the device authorization flow; on mobile platforms the offline
refresh token is kept in console storage so later runs log in silently. Basic sessions
prompt for a username and password unless --username/--password are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gc := config.MustFromContext(cmd.Context())

		m, err := gc.Provider.Manager(cmd.Context())
		if err != nil {
			return err
		}

		if !m.Authenticated() {
			opts := identity.LoginOptions{}
			if username != "" {
				opts.Credentials = &identity.UsernamePassword{Username: username, Password: password}
			}
			ok, err := m.Login(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("login cancelled or rejected")
			}
		}

		pterm.Success.Printf("Logged in as %s (%s)\n", m.Username(), m.AuthMode())
		if name := m.DisplayName(); name != "" {
			pterm.Info.Printf("Name: %s\n", name)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&username, "username", "", "Username for basic auth")
	loginCmd.Flags().StringVar(&password, "password", "", "Password for basic auth")
}
