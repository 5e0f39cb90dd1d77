package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/identity"
	"github.com/EmOne/openremote/pkg/rest"
)

var errUnsupportedAuth = errors.New("unsupported auth type")

// buildStrategy constructs the strategy for mode from the frozen config.
func (m *Manager) buildStrategy(mode identity.AuthMode, cfg Config) identity.Strategy {
	switch mode {
	case identity.ModeNone:
		return identity.NewNone(m.opts.logger)
	case identity.ModeBasic:
		return identity.NewBasic(identity.BasicConfig{
			ClientID:      cfg.ClientID,
			LoginProvider: cfg.BasicLoginProvider,
			Credentials:   cfg.Credentials,
			Users:         m.REST(),
			Navigator:     m.opts.navigator,
			Logger:        m.opts.logger,
		})
	case identity.ModeKeycloak:
		c := m.Console()
		return identity.NewKeycloak(identity.KeycloakConfig{
			ProviderURL: m.ProviderURL(),
			Realm:       cfg.Realm,
			ClientID:    cfg.ClientID,
			AutoLogin:   cfg.AutoLogin,
			Offline:     c.IsMobile(),
			Store:       c,
			Prompt:      cfg.DeviceLoginPrompt,
			Navigator:   m.opts.navigator,
			HTTPClient:  &http.Client{Transport: m.baseTransport(), Timeout: rest.DefaultTimeout},
			Logger:      m.opts.logger,
		})
	default:
		return nil
	}
}

// authenticate selects and runs the strategy for the configured mode. A Keycloak session
// that cannot reach or use its provider is downgraded to Basic once, unless disabled.
func (m *Manager) authenticate(ctx context.Context, cfg Config) (bool, error) {
	mode := cfg.Auth
	if !mode.Valid() {
		m.setError(AuthTypeUnsupported)
		return false, fmt.Errorf("%w: %q", errUnsupportedAuth, mode)
	}

	for {
		ok, err := m.runStrategy(ctx, mode, cfg)
		if err == nil {
			return ok, nil
		}
		m.log.Warn("authentication failed", zap.String("mode", mode.String()), zap.Error(err))

		if mode != identity.ModeKeycloak || cfg.SkipFallbackToBasicAuth || !m.takeFallback() {
			return false, err
		}
		m.log.Info("falling back to basic authentication")
		mode = identity.ModeBasic
	}
}

// takeFallback reports whether the one permitted downgrade is still available and uses it.
func (m *Manager) takeFallback() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fallbackUsed {
		return false
	}
	m.fallbackUsed = true
	return true
}

// runStrategy installs and runs the strategy for mode. A nil error with false means the
// strategy is usable but the user is not logged in yet.
func (m *Manager) runStrategy(ctx context.Context, mode identity.AuthMode, cfg Config) (bool, error) {
	s := m.newStrategy(mode, cfg)
	if s == nil {
		return false, fmt.Errorf("%w: %q", errUnsupportedAuth, mode)
	}

	m.mu.Lock()
	m.strategy = s
	m.readyCallback = nil
	m.mu.Unlock()

	if err := s.Initialize(ctx); err != nil {
		return false, fmt.Errorf("initialise %s: %w", mode, err)
	}

	switch mode {
	case identity.ModeNone:
		return true, nil
	case identity.ModeBasic:
		if cfg.AutoLogin {
			m.mu.Lock()
			m.readyCallback = func(ctx context.Context) error {
				ok, err := s.Authenticate(ctx)
				if err != nil {
					return err
				}
				m.setAuthenticated(ok)
				return nil
			}
			m.mu.Unlock()
		}
		return true, nil
	default:
		authenticated, err := s.Authenticate(ctx)
		if err != nil {
			return false, fmt.Errorf("authenticate %s: %w", mode, err)
		}
		m.setAuthenticated(authenticated)
		return true, nil
	}
}
