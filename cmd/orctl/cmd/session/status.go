package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/EmOne/openremote/cmd/orctl/internal/config"
	"github.com/EmOne/openremote/pkg/manager"
)

var output string

// statusView is the printable session summary.
type statusView struct {
	ManagerURL  string        `json:"managerUrl" yaml:"managerUrl"`
	ProviderURL string        `json:"providerUrl,omitempty" yaml:"providerUrl,omitempty"`
	Realm       string        `json:"realm" yaml:"realm"`
	Language    string        `json:"language" yaml:"language"`
	State       manager.State `json:"state" yaml:"state"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Boot a session and print its state",
	RunE: func(cmd *cobra.Command, args []string) error {
		gc := config.MustFromContext(cmd.Context())

		m, err := gc.Provider.Manager(cmd.Context())
		if m == nil {
			return err
		}
		cfg := m.Config()
		view := statusView{
			ManagerURL:  cfg.ManagerURL,
			ProviderURL: m.ProviderURL(),
			Realm:       cfg.Realm,
			Language:    m.Language(),
			State:       m.State(),
		}
		if printErr := printStatus(os.Stdout, output, view); printErr != nil {
			return printErr
		}
		return err
	},
}

func printStatus(w io.Writer, format string, view statusView) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "MANAGER\t%s\n", view.ManagerURL)
		if view.ProviderURL != "" {
			fmt.Fprintf(tw, "PROVIDER\t%s\n", view.ProviderURL)
		}
		fmt.Fprintf(tw, "VERSION\t%s\n", dash(view.State.ManagerVersion))
		fmt.Fprintf(tw, "REALM\t%s\n", view.Realm)
		fmt.Fprintf(tw, "AUTH\t%s\n", dash(string(view.State.AuthMode)))
		fmt.Fprintf(tw, "USER\t%s\n", dash(view.State.Username))
		fmt.Fprintf(tw, "READY\t%t\n", view.State.Ready)
		fmt.Fprintf(tw, "AUTHENTICATED\t%t\n", view.State.Authenticated)
		fmt.Fprintf(tw, "CONNECTION\t%s\n", view.State.ConnectionStatus)
		fmt.Fprintf(tw, "LANGUAGE\t%s\n", view.Language)
		fmt.Fprintf(tw, "ERROR\t%s\n", dash(string(view.State.Error)))
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (table, yaml, json)", format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	statusCmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, yaml or json")
}
