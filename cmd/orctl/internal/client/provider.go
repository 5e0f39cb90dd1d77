package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/console"
	"github.com/EmOne/openremote/pkg/manager"
	"github.com/EmOne/openremote/pkg/telemetry"
)

const defaultInitTimeout = 2 * time.Minute

// Options configures a Provider.
type Options struct {
	Session        manager.Config
	Platform       string
	Version        string
	NonInteractive bool
	OpenStorage    func(ctx context.Context) (console.Storage, error)
	Logger         *zap.Logger
	InitTimeout    time.Duration
}

// Provider lazily builds and initialises the session shared by a command.
type Provider struct {
	opts     Options
	registry *prometheus.Registry

	once    sync.Once
	manager *manager.Manager
	err     error
}

func NewProvider(opts Options) *Provider {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = defaultInitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Provider{opts: opts, registry: prometheus.NewRegistry()}
}

// Registry holds the session metrics of the provided Manager.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Manager returns the initialised session. Init runs once; a session that booted but is
// not ready is returned together with an error describing why.
func (p *Provider) Manager(ctx context.Context) (*manager.Manager, error) {
	p.once.Do(func() {
		p.manager, p.err = p.build(ctx)
	})
	return p.manager, p.err
}

func (p *Provider) build(ctx context.Context) (*manager.Manager, error) {
	storage, err := p.opts.OpenStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open console storage: %w", err)
	}

	metrics, err := telemetry.NewSessionMetrics(p.registry)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}

	m := manager.New(
		manager.WithLogger(p.opts.Logger),
		manager.WithStorage(storage),
		manager.WithPlatform(p.opts.Platform, p.opts.Version),
		manager.WithMetrics(metrics),
	)

	cfg := p.opts.Session
	if p.opts.NonInteractive {
		cfg.BasicLoginProvider = CredentialsOnly
	} else {
		cfg.BasicLoginProvider = PromptBasicLogin
	}
	cfg.DeviceLoginPrompt = ShowDeviceCode

	ctx, cancel := context.WithTimeout(ctx, p.opts.InitTimeout)
	defer cancel()
	ok, err := m.Init(ctx, cfg)
	if err != nil {
		return m, fmt.Errorf("session init failed (%s): %w", m.Error(), err)
	}
	if !ok {
		return m, fmt.Errorf("session not ready")
	}
	return m, nil
}

// Close shuts the session down if one was built.
func (p *Provider) Close() error {
	if p.manager == nil {
		return nil
	}
	return p.manager.Close()
}
