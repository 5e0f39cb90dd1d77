package manager

import (
	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/events"
)

// openChannel builds and connects the push-event channel in the background.
func (m *Manager) openChannel() {
	cfg := m.Config()
	if cfg.EventProviderType == EventProviderPolling {
		m.log.Debug("event provider is polling, no push channel")
		return
	}

	ch, err := m.opts.channelFactory(cfg.ManagerURL, cfg.Realm, m.AuthorizationHeader, m.opts.logger)
	if err != nil {
		m.log.Error("failed to create event channel", zap.Error(err))
		m.setError(EventsConnectionError)
		return
	}

	m.channelMu.Lock()
	m.channel = ch
	m.unwatch = ch.SubscribeStatusChange(m.onChannelStatus)
	m.channelMu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !ch.Connect(m.bg) {
			m.log.Warn("event channel failed to connect")
			m.setError(EventsConnectionError)
		}
	}()
}

// closeChannel detaches from and disconnects the current channel.
func (m *Manager) closeChannel() {
	m.channelMu.Lock()
	ch, unwatch := m.channel, m.unwatch
	m.channel, m.unwatch = nil, nil
	m.channelMu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if ch != nil {
		ch.Disconnect()
	}
}

func (m *Manager) onChannelStatus(s events.Status) {
	m.log.Debug("event channel status", zap.Stringer("status", s))
	switch s {
	case events.StatusConnecting:
		m.emit(EventConnecting)
	case events.StatusConnected:
		m.setDisconnected(false)
	case events.StatusDisconnected:
		m.setDisconnected(true)
		m.startReconnect()
	}
}
