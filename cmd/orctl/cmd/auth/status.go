package auth

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/EmOne/openremote/cmd/orctl/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status and roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		gc := config.MustFromContext(cmd.Context())

		m, err := gc.Provider.Manager(cmd.Context())
		if err != nil {
			return err
		}
		if !m.Authenticated() {
			return fmt.Errorf("not logged in")
		}

		pterm.DefaultSection.Println("Authentication Status")
		pterm.Info.Printf("User: %s (%s)\n", m.Username(), m.AuthMode())
		pterm.Info.Printf("Realm: %s\n", m.Config().Realm)
		if m.IsSuperUser() {
			pterm.Info.Println("Super user")
		}
		if m.IsRestrictedUser() {
			pterm.Warning.Println("Restricted user")
		}

		pterm.DefaultSection.Println("Roles")
		roles := m.Roles()
		clients := make([]string, 0, len(roles))
		for c := range roles {
			clients = append(clients, c)
		}
		sort.Strings(clients)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT\tROLES")
		for _, c := range clients {
			fmt.Fprintf(w, "%s\t%s\n", c, strings.Join(roles[c], ", "))
		}
		w.Flush()
		return nil
	},
}
