package manager

import (
	"context"

	"go.uber.org/zap"
)

// Refresh loop outcomes reported to metrics.
const (
	refreshRefreshed = "refreshed"
	refreshSkipped   = "skipped"
	refreshFailed    = "failed"
)

func (m *Manager) startRefresh() {
	m.refresh.start(m.bg, m.opts.refreshInterval, m.refreshTick)
}

// refreshTick keeps the token fresh while authenticated. A failed refresh hands over to the
// reconnect task without touching the disconnected flag.
func (m *Manager) refreshTick(ctx context.Context) bool {
	if !m.Authenticated() {
		return true
	}
	if m.Disconnected() {
		m.opts.metrics.ObserveRefresh(refreshSkipped)
		return false
	}

	s := m.currentStrategy()
	if s == nil {
		return true
	}
	refreshed, err := s.Refresh(ctx, refreshThreshold(s))
	switch {
	case err != nil:
		m.log.Warn("token refresh failed", zap.Error(err))
		m.opts.metrics.ObserveRefresh(refreshFailed)
		m.startReconnect()
	case refreshed:
		m.log.Debug("token refreshed")
		m.opts.metrics.ObserveRefresh(refreshRefreshed)
	default:
		m.opts.metrics.ObserveRefresh(refreshSkipped)
	}
	return false
}
