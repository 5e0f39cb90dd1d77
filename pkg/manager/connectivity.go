package manager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/identity"
)

// defaultRefreshThreshold is used when the token lifespan is unknown.
const defaultRefreshThreshold = 30 * time.Second

func (m *Manager) reconnectInterval() time.Duration {
	if m.opts.reconnectInterval > 0 {
		return m.opts.reconnectInterval
	}
	return time.Duration(m.Config().PollingIntervalMillis) * time.Millisecond
}

// startReconnect starts the reconnect task unless one is already live.
func (m *Manager) startReconnect() {
	if m.reconnect.start(m.bg, m.reconnectInterval(), m.reconnectTick) {
		m.log.Info("connection lost, reconnecting", zap.Duration("interval", m.reconnectInterval()))
	}
}

// reconnectTick probes once. A failed probe marks the session disconnected, which covers
// reconnects started by a failed token refresh rather than by the event channel.
func (m *Manager) reconnectTick(ctx context.Context) bool {
	m.emit(EventConnecting)
	ok := m.attemptReconnect(ctx)
	m.opts.metrics.ObserveReconnect(ok)
	if !ok {
		m.setDisconnected(true)
		return false
	}
	m.log.Info("reconnected")
	m.setDisconnected(false)
	return true
}

// attemptReconnect reports whether the backend is reachable again. With Keycloak the provider
// must be up and an authenticated session gets its token refreshed; otherwise the manager
// must answer its info probe.
func (m *Manager) attemptReconnect(ctx context.Context) bool {
	s := m.currentStrategy()
	if s != nil && s.Mode() == identity.ModeKeycloak {
		return m.attemptProviderReconnect(ctx, s)
	}

	c := m.REST()
	if c == nil {
		return false
	}
	if _, err := c.FetchInfo(ctx); err != nil {
		m.log.Debug("manager still unreachable", zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) attemptProviderReconnect(ctx context.Context, s identity.Strategy) bool {
	c := m.REST()
	if c == nil {
		return false
	}
	health := m.ProviderURL() + "/health/ready"
	if err := c.Reachable(ctx, health); err != nil {
		m.log.Debug("identity provider still unreachable", zap.Error(err))
		return false
	}
	if !m.Authenticated() {
		return true
	}

	if _, err := s.Refresh(ctx, refreshThreshold(s)); err != nil {
		// Provider answers but rejects the refresh token: online, but a re-login is needed.
		m.log.Warn("identity provider reachable but token refresh failed", zap.Error(err))
		m.setAuthenticated(false)
	}
	return true
}

func refreshThreshold(s identity.Strategy) time.Duration {
	if lifespan := s.TokenLifespan(); lifespan > 0 {
		return lifespan / 2
	}
	return defaultRefreshThreshold
}
