package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewSessionMetrics(reg)
	require.NoError(t, err)

	m.ObserveEvent("OFFLINE")
	m.ObserveEvent("OFFLINE")
	m.ObserveEvent("ONLINE")
	m.ObserveError("AUTH_FAILED")
	m.ObserveReconnect(false)
	m.ObserveReconnect(true)
	m.ObserveRefresh("refreshed")
	m.SetAuthenticated(true)
	m.SetConnected(false)
	m.SetReady(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("OFFLINE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("ONLINE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("AUTH_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authenticated))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready))
}

func TestSessionMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSessionMetrics(reg)
	require.NoError(t, err)

	_, err = NewSessionMetrics(reg)
	assert.Error(t, err)
}

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "orctl"}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
