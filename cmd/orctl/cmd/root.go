package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/EmOne/openremote/cmd/orctl/cmd/auth"
	"github.com/EmOne/openremote/cmd/orctl/cmd/session"
	"github.com/EmOne/openremote/cmd/orctl/internal/client"
	"github.com/EmOne/openremote/cmd/orctl/internal/config"
	"github.com/EmOne/openremote/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

var (
	configFile string
	envFile    string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "orctl",
	Short: "OpenRemote console session CLI",
	Long: `orctl runs an OpenRemote console session from the terminal: it checks the manager
is reachable, logs in (device login for Keycloak, username/password for basic auth) and
keeps the session's push-event connection and tokens alive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("OR_NON_INTERACTIVE") == "1" {
			v.Set("non_interactive", true)
		}

		cfg, err := config.Load(v, config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log := logger.New(cfg.Env, cfg.LogLevel)

		provider := client.NewProvider(client.Options{
			Session:        cfg.Session,
			Platform:       cfg.Platform,
			Version:        Version,
			NonInteractive: cfg.NonInteractive,
			OpenStorage:    cfg.OpenStorage,
			Logger:         log,
		})
		cmd.SetContext(config.InjectConfig(cmd.Context(), &config.GlobalConfig{
			Config:   cfg,
			Version:  Version,
			Logger:   log,
			Provider: provider,
		}))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		gc, ok := config.FromContext(cmd.Context())
		if !ok {
			return nil
		}
		_ = gc.Logger.Sync()
		return gc.Provider.Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./orctl.yaml or ~/.openremote/orctl.yaml)")
	flags.StringVar(&envFile, "env-file", "", "Env file loaded before reading OR_* variables (default .env)")
	flags.String("manager-url", "", "Manager URL (env: OR_SESSION_MANAGER_URL)")
	flags.String("realm", "", "Realm (env: OR_SESSION_REALM)")
	flags.String("auth", "", "Auth mode: KEYCLOAK, BASIC or NONE (env: OR_SESSION_AUTH)")
	flags.String("storage", "", "Console storage: memory, file or redis (env: OR_STORAGE_KIND)")
	flags.String("log-level", "", "Log level (env: OR_LOG_LEVEL)")
	flags.Bool("non-interactive", false, "Disable interactive prompts (also set via OR_NON_INTERACTIVE=1)")

	for key, flag := range map[string]string{
		"session.manager_url": "manager-url",
		"session.realm":       "realm",
		"session.auth":        "auth",
		"storage.kind":        "storage",
		"log_level":           "log-level",
		"non_interactive":     "non-interactive",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(session.SessionCmd)
}
