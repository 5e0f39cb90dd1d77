package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/EmOne/openremote/pkg/console"
	"github.com/EmOne/openremote/pkg/identity"
	"github.com/EmOne/openremote/pkg/manager"
)

// EnvPrefix prefixes every environment variable orctl reads, e.g. OR_SESSION_MANAGER_URL.
const EnvPrefix = "OR"

// Storage backends for the console key/value store.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config holds the orctl configuration.
type Config struct {
	Env            string          `mapstructure:"env"`
	LogLevel       string          `mapstructure:"log_level"`
	Platform       string          `mapstructure:"platform"`
	NonInteractive bool            `mapstructure:"non_interactive"`
	MetricsAddr    string          `mapstructure:"metrics_addr"`
	Session        manager.Config  `mapstructure:"session"`
	Storage        StorageConfig   `mapstructure:"storage"`
	Telemetry      TelemetryConfig `mapstructure:"telemetry"`
}

// StorageConfig selects where the console persists LANGUAGE and REFRESH_TOKEN.
type StorageConfig struct {
	Kind      string `mapstructure:"kind"`
	Dir       string `mapstructure:"dir"`
	RedisURL  string `mapstructure:"redis_url"`
	Namespace string `mapstructure:"namespace"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadOptions locates the optional config and env files.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty orctl.yaml is searched for in the
	// working directory and ~/.openremote.
	ConfigFile string
	// EnvFile is loaded into the environment before reading variables. A missing default
	// .env is ignored; a missing explicit file is an error.
	EnvFile string
}

var sessionKeys = []string{
	"session.manager_url",
	"session.origin",
	"session.realm",
	"session.auth_server_url",
	"session.auth",
	"session.client_id",
	"session.auto_login",
	"session.skip_fallback_to_basic_auth",
	"session.console_auto_enable",
	"session.event_provider_type",
	"session.polling_interval_millis",
	"session.load_icons",
	"session.load_translations",
	"session.translations_load_path",
	"session.load_descriptors",
	"session.map_type",
	"session.credentials.username",
	"session.credentials.password",
}

// Load reads configuration from the env file, the config file and OR_* environment
// variables, in increasing precedence. Flags bound to v take precedence over all of them.
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range sessionKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("platform", "cli")
	v.SetDefault("non_interactive", false)
	v.SetDefault("metrics_addr", "127.0.0.1:9464")
	v.SetDefault("session.auto_login", true)
	v.SetDefault("storage.kind", StorageFile)
	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.namespace", "default")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("orctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".openremote"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Validate checks the values Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Session.Auth != "" {
		mode, err := identity.ParseAuthMode(string(c.Session.Auth))
		if err != nil {
			return fmt.Errorf("session.auth: %w", err)
		}
		c.Session.Auth = mode
	}

	switch c.Storage.Kind {
	case StorageMemory, StorageFile:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for redis storage")
		}
	default:
		return fmt.Errorf("storage.kind %q is not one of memory, file, redis", c.Storage.Kind)
	}
	return nil
}

// OpenStorage opens the configured console storage backend.
func (c *Config) OpenStorage(ctx context.Context) (console.Storage, error) {
	switch c.Storage.Kind {
	case StorageMemory:
		return console.NewMemoryStorage(), nil
	case StorageRedis:
		return console.NewRedisStorage(ctx, c.Storage.RedisURL, c.Storage.Namespace)
	default:
		return console.NewFileStorage(c.Storage.Dir)
	}
}
