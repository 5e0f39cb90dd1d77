package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics exposes the state of a console session to prometheus.
type SessionMetrics struct {
	events        *prometheus.CounterVec
	errors        *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	authenticated prometheus.Gauge
	connected     prometheus.Gauge
	ready         prometheus.Gauge
}

// NewSessionMetrics creates the session instruments and registers them with reg.
func NewSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	m := &SessionMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Lifecycle events emitted by the session.",
		}, []string{"event"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Session errors by kind.",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts by outcome.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "token_refreshes_total",
			Help:      "Token refresh checks by outcome.",
		}, []string{"result"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 when the session is authenticated.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "connected",
			Help:      "1 when the manager is reachable.",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openremote",
			Subsystem: "session",
			Name:      "ready",
			Help:      "1 once the session finished booting.",
		}),
	}

	for _, c := range []prometheus.Collector{m.events, m.errors, m.reconnects, m.refreshes, m.authenticated, m.connected, m.ready} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SessionMetrics) ObserveEvent(event string) {
	m.events.WithLabelValues(event).Inc()
}

func (m *SessionMetrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

func (m *SessionMetrics) ObserveReconnect(success bool) {
	m.reconnects.WithLabelValues(result(success)).Inc()
}

// ObserveRefresh records a refresh check: "refreshed", "skipped" or "failed".
func (m *SessionMetrics) ObserveRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *SessionMetrics) SetAuthenticated(v bool) {
	m.authenticated.Set(boolGauge(v))
}

func (m *SessionMetrics) SetConnected(v bool) {
	m.connected.Set(boolGauge(v))
}

func (m *SessionMetrics) SetReady(v bool) {
	m.ready.Set(boolGauge(v))
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
