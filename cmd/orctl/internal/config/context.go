package config

import (
	"context"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/cmd/orctl/internal/client"
)

type contextKey string

const configKey contextKey = "orctl-config"

// GlobalConfig holds shared state for all orctl commands. The root command's
// PersistentPreRunE injects it into the command context.
type GlobalConfig struct {
	Config   *Config
	Version  string
	Logger   *zap.Logger
	Provider *client.Provider
}

func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext returns (nil, false) when no config was injected.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext is for RunE functions, where the root command has always injected config.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("orctl: config not found in context - this is a bug in orctl")
	}
	return cfg
}
