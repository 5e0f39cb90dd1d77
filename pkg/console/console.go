// Package console is the host-shell integration of a session: platform detection, the
// enabled state and the persistent key/value storage used for LANGUAGE and REFRESH_TOKEN.
package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/logger"
)

// Well known storage keys.
const (
	KeyLanguage     = "LANGUAGE"
	KeyRefreshToken = "REFRESH_TOKEN"
)

// Platform names. Android and iOS shells are mobile.
const (
	PlatformWeb     = "web"
	PlatformCLI     = "cli"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// Config configures a Console.
type Config struct {
	Platform   string
	Version    string
	AutoEnable bool
	Storage    Storage
	Logger     *zap.Logger
}

// Console represents the shell the session runs in.
type Console struct {
	cfg     Config
	log     *zap.Logger
	mu      sync.RWMutex
	enabled bool
	ready   bool
}

func New(cfg Config) *Console {
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.Platform == "" {
		cfg.Platform = PlatformWeb
	}
	cfg.Platform = strings.ToLower(cfg.Platform)
	return &Console{cfg: cfg, log: logger.OrNop(cfg.Logger).With(zap.String("platform", cfg.Platform))}
}

// Init verifies the storage backend and, with AutoEnable, enables the console.
func (c *Console) Init(ctx context.Context) error {
	if _, _, err := c.cfg.Storage.Get(ctx, KeyLanguage); err != nil {
		return fmt.Errorf("console storage unavailable: %w", err)
	}
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	if c.cfg.AutoEnable {
		c.Enable()
	}
	c.log.Debug("console initialised", zap.Bool("enabled", c.Enabled()))
	return nil
}

func (c *Console) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}

func (c *Console) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

func (c *Console) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Console) Platform() string {
	return c.cfg.Platform
}

func (c *Console) Version() string {
	return c.cfg.Version
}

func (c *Console) IsMobile() bool {
	return c.cfg.Platform == PlatformAndroid || c.cfg.Platform == PlatformIOS
}

// StoreData writes value under key. An empty value removes the key.
func (c *Console) StoreData(ctx context.Context, key, value string) error {
	if value == "" {
		return c.cfg.Storage.Delete(ctx, key)
	}
	return c.cfg.Storage.Set(ctx, key, value)
}

// RetrieveData returns the value under key, or "" when absent.
func (c *Console) RetrieveData(ctx context.Context, key string) (string, error) {
	v, _, err := c.cfg.Storage.Get(ctx, key)
	return v, err
}

func (c *Console) Close() error {
	return c.cfg.Storage.Close()
}
