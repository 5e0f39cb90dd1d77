package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventBus struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	auth     []string
	received chan string
	conns    chan *websocket.Conn
}

func newFakeEventBus(t *testing.T) *fakeEventBus {
	t.Helper()
	bus := &fakeEventBus{
		received: make(chan string, 16),
		conns:    make(chan *websocket.Conn, 4),
	}
	bus.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/websocket/events" || r.URL.Query().Get("Realm") != "master" {
			http.NotFound(w, r)
			return
		}
		bus.mu.Lock()
		bus.auth = append(bus.auth, r.Header.Get("Authorization"))
		bus.mu.Unlock()

		ws, err := bus.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		bus.conns <- ws
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			bus.received <- string(msg)
		}
	}))
	t.Cleanup(bus.server.Close)
	return bus
}

func (b *fakeEventBus) url(t *testing.T) string {
	t.Helper()
	u, err := EventsURL(b.server.URL, "master")
	require.NoError(t, err)
	return u
}

func (b *fakeEventBus) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-b.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		manager string
		want    string
	}{
		{"http://localhost:8080", "ws://localhost:8080/websocket/events?Realm=master"},
		{"https://demo.openremote.io/", "wss://demo.openremote.io/websocket/events?Realm=master"},
		{"https://example.org/manager", "wss://example.org/manager/websocket/events?Realm=master"},
	}
	for _, tt := range tests {
		t.Run(tt.manager, func(t *testing.T) {
			got, err := EventsURL(tt.manager, "master")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := EventsURL("ftp://example.org", "master")
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", StatusDisconnected.String())
	assert.Equal(t, "CONNECTING", StatusConnecting.String())
	assert.Equal(t, "CONNECTED", StatusConnected.String())
}

func TestWebSocketChannelLifecycle(t *testing.T) {
	bus := newFakeEventBus(t)

	var mu sync.Mutex
	var statuses []Status
	ch := NewWebSocketChannel(bus.url(t), WebSocketOptions{
		Authorization:  func() string { return "Bearer abc" },
		ReconnectDelay: 50 * time.Millisecond,
	})
	remove := ch.SubscribeStatusChange(func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})
	defer remove()

	require.True(t, ch.Connect(t.Context()))
	assert.Equal(t, StatusConnected, ch.Status())
	assert.True(t, ch.Connect(t.Context()), "connect on a running channel reports the live state")

	server := <-bus.conns
	bus.mu.Lock()
	assert.Equal(t, []string{"Bearer abc"}, bus.auth)
	bus.mu.Unlock()

	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`EVENT:{"eventType":"attribute","ref":{"id":"a1"}}`)))
	select {
	case e := <-ch.Events():
		assert.Equal(t, "attribute", e.EventType)
		assert.Contains(t, string(e.Raw), `"id":"a1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	require.NoError(t, ch.Send(t.Context(), map[string]string{"eventType": "read-asset"}))
	assert.Equal(t, `EVENT:{"eventType":"read-asset"}`, bus.next(t))

	id, err := ch.Subscribe(t.Context(), "attribute", nil)
	require.NoError(t, err)
	frame := bus.next(t)
	assert.True(t, strings.HasPrefix(frame, prefixSubscribe))
	assert.Contains(t, frame, id)

	require.NoError(t, ch.Unsubscribe(t.Context(), id))
	assert.Equal(t, `UNSUBSCRIBE:{"subscriptionId":"`+id+`"}`, bus.next(t))

	ch.Disconnect()
	assert.Equal(t, StatusDisconnected, ch.Status())
	assert.ErrorIs(t, ch.Send(t.Context(), map[string]string{}), ErrNotConnected)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusDisconnected}, statuses)
}

func TestWebSocketChannelReconnectsAndReplaysSubscriptions(t *testing.T) {
	bus := newFakeEventBus(t)
	ch := NewWebSocketChannel(bus.url(t), WebSocketOptions{ReconnectDelay: 20 * time.Millisecond})
	defer ch.Disconnect()

	id, err := ch.Subscribe(t.Context(), "alarm", map[string]string{"realm": "master"})
	require.NoError(t, err, "subscribing before connect is deferred")

	require.True(t, ch.Connect(t.Context()))
	first := <-bus.conns
	assert.Contains(t, bus.next(t), id)

	require.NoError(t, first.Close())

	select {
	case <-bus.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not reconnect")
	}
	assert.Contains(t, bus.next(t), id, "subscription replayed after reconnect")
	require.Eventually(t, func() bool { return ch.Status() == StatusConnected }, time.Second, 5*time.Millisecond)
}

func TestWebSocketChannelConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := EventsURL(srv.URL, "master")
	require.NoError(t, err)
	srv.Close()

	ch := NewWebSocketChannel(u, WebSocketOptions{ReconnectDelay: time.Hour})
	defer ch.Disconnect()

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	assert.False(t, ch.Connect(ctx))
	assert.Equal(t, StatusDisconnected, ch.Status())
}

func TestSplitFrame(t *testing.T) {
	prefix, payload := splitFrame([]byte(`EVENT:{"a":"b:c"}`))
	assert.Equal(t, prefixEvent, prefix)
	assert.Equal(t, `{"a":"b:c"}`, string(payload))

	prefix, _ = splitFrame([]byte("garbage"))
	assert.Empty(t, prefix)
}
