package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/console"
	"github.com/EmOne/openremote/pkg/descriptors"
	"github.com/EmOne/openremote/pkg/i18n"
	"github.com/EmOne/openremote/pkg/identity"
	"github.com/EmOne/openremote/pkg/rest"
	"github.com/EmOne/openremote/pkg/telemetry"
)

// Init boots the session: probe the manager, authenticate, prepare the REST layer and load
// the console, translations, descriptors and app config. It reports whether the session is
// ready. Only the probe and authentication are fatal; the remaining stages degrade to an
// Error event. A failed Init discards the configuration so it can be retried.
func (m *Manager) Init(ctx context.Context, cfg Config) (bool, error) {
	select {
	case <-m.closed:
		return false, ErrClosed
	default:
	}
	if !m.initializing.CompareAndSwap(false, true) {
		m.log.Warn("init already in progress")
		return m.Ready(), nil
	}
	defer m.initializing.Store(false)

	normalized := Normalize(cfg)
	m.mu.Lock()
	if m.config != nil {
		ready := m.ready
		m.mu.Unlock()
		m.log.Warn("already initialised", zap.Bool("ready", ready))
		return ready, nil
	}
	frozen := normalized.clone()
	m.config = &frozen
	m.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "session.init",
		attribute.String(telemetry.AttrRealm, normalized.Realm),
		attribute.String(telemetry.AttrAuthMode, normalized.Auth.String()),
	)
	defer span.End()

	if err := m.boot(ctx, normalized); err != nil {
		telemetry.RecordError(span, err)
		m.log.Error("failed to initialise the manager", zap.Error(err))
		m.mu.Lock()
		m.config = nil
		m.mu.Unlock()
		return false, err
	}
	return true, nil
}

func (m *Manager) boot(ctx context.Context, cfg Config) error {
	client := rest.NewClient(cfg.ManagerURL, cfg.Realm,
		rest.WithTransport(m.baseTransport()),
		rest.WithLogger(m.opts.logger),
	)
	c := console.New(console.Config{
		Platform:   m.opts.platform,
		Version:    m.opts.consoleVersion,
		AutoEnable: *cfg.ConsoleAutoEnable,
		Storage:    m.opts.storage,
		Logger:     m.opts.logger,
	})
	m.mu.Lock()
	m.rest = client
	m.console = c
	m.mu.Unlock()

	info, err := client.FetchInfo(ctx)
	if err != nil {
		m.setError(ManagerFailedToLoad)
		return fmt.Errorf("manager info: %w", err)
	}
	m.mu.Lock()
	m.managerVersion = info.Version
	if cfg.Auth == identity.ModeKeycloak {
		m.providerURL = ResolveProviderURL(cfg.ManagerURL, cfg.AuthServerURL, info.AuthServerURL)
	}
	m.mu.Unlock()
	m.log.Info("manager available", zap.String("version", info.Version), zap.String("provider", m.ProviderURL()))

	// Basic login prompts are translated, so translations come first.
	translated := false
	if cfg.Auth == identity.ModeBasic {
		m.initTranslations(ctx, cfg)
		translated = true
	}

	if _, err := m.authenticate(ctx, cfg); err != nil {
		if !errors.Is(err, errUnsupportedAuth) {
			m.setError(AuthFailed)
		}
		return fmt.Errorf("authentication: %w", err)
	}

	client.SetAuthorizer(m.AuthorizationHeader)
	client.SetTimeout(rest.DefaultTimeout)

	m.initConsole(ctx)
	if !translated {
		m.initTranslations(ctx, cfg)
	}
	if *cfg.LoadDescriptors {
		m.initDescriptors(ctx)
	}
	m.initAppConfig(ctx, cfg)

	m.mu.RLock()
	callback := m.readyCallback
	m.mu.RUnlock()
	if callback != nil {
		if err := callback(ctx); err != nil {
			m.log.Warn("ready callback failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.ready = true
	m.displayRealm = cfg.Realm
	m.mu.Unlock()
	m.opts.metrics.SetReady(true)
	m.emit(EventReady)
	return nil
}

func (m *Manager) initConsole(ctx context.Context) {
	c := m.Console()
	if err := c.Init(ctx); err != nil {
		m.log.Error("console init failed", zap.Error(err))
		m.setError(ConsoleError)
		return
	}
	m.emit(EventConsoleInit)
	if c.Enabled() {
		m.emit(EventConsoleReady)
	}
}

func (m *Manager) initTranslations(ctx context.Context, cfg Config) {
	lang, err := m.Console().RetrieveData(ctx, console.KeyLanguage)
	if err != nil {
		m.log.Warn("failed to read stored language", zap.Error(err))
	}

	opts := i18n.Options{
		ManagerURL: cfg.ManagerURL,
		Namespaces: cfg.LoadTranslations,
		LoadPath:   cfg.TranslationsLoadPath,
		Language:   lang,
		HTTPClient: m.REST().HTTPClient(),
		Logger:     m.opts.logger,
	}
	if cfg.ConfigureTranslations != nil {
		cfg.ConfigureTranslations(&opts)
	}

	t, err := i18n.New(opts)
	if err == nil {
		err = t.Init(ctx)
	}
	if err != nil {
		m.log.Error("failed to load translations", zap.Error(err))
		m.setError(TranslationError)
		return
	}

	m.mu.Lock()
	m.translator = t
	m.mu.Unlock()
	m.emit(EventTranslateInit)
}

func (m *Manager) initDescriptors(ctx context.Context) {
	cache := descriptors.NewCache(m.REST())
	if err := cache.Refresh(ctx); err != nil {
		m.log.Warn("failed to load model descriptors", zap.Error(err))
	}
	m.mu.Lock()
	m.descriptors = cache
	m.mu.Unlock()
}

func (m *Manager) initAppConfig(ctx context.Context, cfg Config) {
	appConfig, err := m.REST().ConsoleAppConfig(ctx, cfg.Realm)
	if err != nil {
		m.log.Debug("no console app config", zap.String("realm", cfg.Realm), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.appConfig = appConfig
	m.mu.Unlock()
}

func (m *Manager) baseTransport() http.RoundTripper {
	if m.opts.transport != nil {
		return m.opts.transport
	}
	return otelhttp.NewTransport(http.DefaultTransport)
}
